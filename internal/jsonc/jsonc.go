package jsonc

import (
	"bytes"

	"github.com/goccy/go-json"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Unmarshal decodes a tsconfig-style JSON document (UTF-8 BOM, comments and
// trailing commas allowed) into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(Clean(data), v)
}

// Clean strips a leading BOM and then comments and trailing commas.
func Clean(data []byte) []byte {
	return StripJSONC(bytes.TrimPrefix(data, bom))
}

// StripJSONC strips out comments and trailing commas and convert the input to a
// valid JSON as defined by RFC 8259
//
// The resulting JSON will always be the same length as the input and it will
// include all of the same line breaks at matching offsets. This is to ensure
// the result can be later processed by a external parser and that that
// parser will report messages or errors with the correct offsets.
//
// The MIT License (MIT)
// Copyright (c) 2021 Josh Baker
func StripJSONC(src []byte) []byte {
	dst := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		if src[i] == '/' && i < len(src)-1 {
			switch src[i+1] {
			case '/':
				dst = append(dst, ' ', ' ')
				i += 2
				for ; i < len(src); i++ {
					if src[i] == '\n' {
						dst = append(dst, '\n')
						break
					}
					dst = append(dst, blank(src[i]))
				}
				continue
			case '*':
				dst = append(dst, ' ', ' ')
				i += 2
				for ; i < len(src)-1; i++ {
					if src[i] == '*' && src[i+1] == '/' {
						dst = append(dst, ' ', ' ')
						i++
						break
					}
					if src[i] == '\n' {
						dst = append(dst, '\n')
					} else {
						dst = append(dst, blank(src[i]))
					}
				}
				continue
			}
		}
		dst = append(dst, src[i])
		if src[i] == '"' {
			for i = i + 1; i < len(src); i++ {
				dst = append(dst, src[i])
				if src[i] == '"' {
					j := i - 1
					for ; src[j] == '\\'; j-- {
					}
					if (j-i)%2 != 0 {
						break
					}
				}
			}
		} else if src[i] == '}' || src[i] == ']' {
			for j := len(dst) - 2; j >= 0; j-- {
				if dst[j] <= ' ' {
					continue
				}
				if dst[j] == ',' {
					dst[j] = ' '
				}
				break
			}
		}
	}
	return dst
}

// blank keeps tabs and carriage returns so column offsets survive.
func blank(c byte) byte {
	if c == '\t' || c == '\r' {
		return c
	}
	return ' '
}
