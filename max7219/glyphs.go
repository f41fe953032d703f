// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

// UnknownChar is displayed for characters without a segment pattern.
const UnknownChar byte = 0b11111111

// asciiToRaw maps the printable characters ' ' to '}' to a column pattern.
//
// Bit 7 is the decimal point, bits 6 to 0 are the segments A to G, which is
// the raw (non decoded) layout of a digit register.
var asciiToRaw = [94]byte{
	0b00000000,  // ' ' 0x20
	0b10110000,  // '!' 0x21
	0b00100010,  // '"' 0x22
	UnknownChar, // '#' 0x23
	UnknownChar, // '$' 0x24
	0b01001001,  // '%' 0x25
	UnknownChar, // '&' 0x26
	0b00000010,  // '\'' 0x27
	0b01001110,  // '(' 0x28
	0b01111000,  // ')' 0x29
	0b01000000,  // '*' 0x2A
	UnknownChar, // '+' 0x2B
	0b00010000,  // ',' 0x2C
	0b00000001,  // '-' 0x2D
	0b10000000,  // '.' 0x2E
	UnknownChar, // '/' 0x2F
	0b01111110,  // '0' 0x30
	0b00110000,  // '1' 0x31
	0b01101101,  // '2' 0x32
	0b01111001,  // '3' 0x33
	0b00110011,  // '4' 0x34
	0b01011011,  // '5' 0x35
	0b01011111,  // '6' 0x36
	0b01110000,  // '7' 0x37
	0b01111111,  // '8' 0x38
	0b01111011,  // '9' 0x39
	0b01001000,  // ':' 0x3A
	0b01011000,  // ';' 0x3B
	UnknownChar, // '<' 0x3C
	0b00001001,  // '=' 0x3D
	UnknownChar, // '>' 0x3E
	0b01100101,  // '?' 0x3F
	0b01101111,  // '@' 0x40
	0b01110111,  // 'A' 0x41
	0b00011111,  // 'B' 0x42
	0b01001110,  // 'C' 0x43
	0b00111101,  // 'D' 0x44
	0b01001111,  // 'E' 0x45
	0b01000111,  // 'F' 0x46
	0b01011110,  // 'G' 0x47
	0b00110111,  // 'H' 0x48
	0b00110000,  // 'I' 0x49
	0b00111100,  // 'J' 0x4A
	UnknownChar, // 'K' 0x4B
	0b00001110,  // 'L' 0x4C
	UnknownChar, // 'M' 0x4D
	0b00010101,  // 'N' 0x4E
	0b01111110,  // 'O' 0x4F
	0b01100111,  // 'P' 0x50
	0b11111110,  // 'Q' 0x51
	0b00000101,  // 'R' 0x52
	0b01011011,  // 'S' 0x53
	0b00000111,  // 'T' 0x54
	0b00111110,  // 'U' 0x55
	0b00111110,  // 'V' 0x56
	0b00111111,  // 'W' 0x57
	UnknownChar, // 'X' 0x58
	0b00100111,  // 'Y' 0x59
	0b01101101,  // 'Z' 0x5A
	0b01001110,  // '[' 0x5B
	UnknownChar, // '\\' 0x5C
	0b01111000,  // ']' 0x5D
	UnknownChar, // '^' 0x5E
	0b00001000,  // '_' 0x5F
	0b00100000,  // '`' 0x60
	0b01110111,  // 'a' 0x61
	0b00011111,  // 'b' 0x62
	0b00001101,  // 'c' 0x63
	0b00111101,  // 'd' 0x64
	0b01001111,  // 'e' 0x65
	0b01000111,  // 'f' 0x66
	0b01011110,  // 'g' 0x67
	0b00010111,  // 'h' 0x68
	0b00010000,  // 'i' 0x69
	0b00111100,  // 'j' 0x6A
	UnknownChar, // 'k' 0x6B
	0b00001110,  // 'l' 0x6C
	UnknownChar, // 'm' 0x6D
	0b00010101,  // 'n' 0x6E
	0b00011101,  // 'o' 0x6F
	0b01100111,  // 'p' 0x70
	UnknownChar, // 'q' 0x71
	0b00000101,  // 'r' 0x72
	0b01011011,  // 's' 0x73
	0b00000111,  // 't' 0x74
	0b00011100,  // 'u' 0x75
	0b00011100,  // 'v' 0x76
	UnknownChar, // 'w' 0x77
	UnknownChar, // 'x' 0x78
	0b00100111,  // 'y' 0x79
	UnknownChar, // 'z' 0x7A
	0b00110001,  // '{' 0x7B
	0b00000110,  // '|' 0x7C
	0b00000111,  // '}' 0x7D
}

// Glyph returns the column pattern for r. ok is false for characters that
// have no pattern, in which case UnknownChar is returned.
func Glyph(r rune) (pattern byte, ok bool) {
	if r < ' ' || r-' ' >= rune(len(asciiToRaw)) {
		return UnknownChar, false
	}
	pattern = asciiToRaw[r-' ']
	return pattern, pattern != UnknownChar
}
