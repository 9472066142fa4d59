// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import "unicode"

// repairJSON fixes the mistakes small models make most often in JSON mode:
// object keys missing their opening quote and trailing commas before a
// closing brace or bracket. Text inside string literals is left alone.
func repairJSON(s string) string {
	return dropTrailingCommas(quoteKeys(s))
}

// quoteKeys turns `{ category": ...` into `{ "category": ...`.
func quoteKeys(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)
	inString := false

	for i := 0; i < len(in); i++ {
		ch := in[i]
		out = append(out, ch)

		switch {
		case inString:
			if ch == '\\' && i+1 < len(in) {
				i++
				out = append(out, in[i])
			} else if ch == '"' {
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == '{' || ch == ',':
			start := i + 1
			for start < len(in) && unicode.IsSpace(in[start]) {
				start++
			}
			end := start
			for end < len(in) && isKeyRune(in[end]) {
				end++
			}
			if end > start && isLetter(in[start]) && end+1 < len(in) && in[end] == '"' && in[end+1] == ':' {
				out = append(out, in[i+1:start]...)
				out = append(out, '"')
				out = append(out, in[start:end+1]...)
				i = end
			}
		}
	}

	return string(out)
}

// dropTrailingCommas removes commas that directly precede } or ].
func dropTrailingCommas(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in))
	inString := false

	for i := 0; i < len(in); i++ {
		ch := in[i]
		switch {
		case inString:
			if ch == '\\' && i+1 < len(in) {
				out = append(out, ch)
				i++
				ch = in[i]
			} else if ch == '"' {
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == ',':
			next := i + 1
			for next < len(in) && unicode.IsSpace(in[next]) {
				next++
			}
			if next < len(in) && (in[next] == '}' || in[next] == ']') {
				continue
			}
		}
		out = append(out, ch)
	}

	return string(out)
}
