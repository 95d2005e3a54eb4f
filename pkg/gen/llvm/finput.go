package llvmgen

import "strings"

// scanfConversions extracts the conversion letters of a scanf-style
// format, in order. %% is not a conversion; scansets count as 's'.
func scanfConversions(format string) []byte {
	var specs []byte

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		if i >= len(format) {
			break
		}
		if format[i] == '%' {
			continue
		}

		// Skip width digits and length modifiers.
		for i < len(format) && (format[i] >= '0' && format[i] <= '9' ||
			format[i] == 'l' || format[i] == 'h' || format[i] == 'z') {
			i++
		}
		if i >= len(format) {
			break
		}

		if format[i] == '[' {
			for i < len(format) && format[i] != ']' {
				i++
			}
			specs = append(specs, 's')
			continue
		}

		specs = append(specs, format[i])
	}

	return specs
}

// replaceStringConversions rewrites %s so string reads take the whole
// line instead of stopping at the first space.
func replaceStringConversions(format string) string {
	return strings.ReplaceAll(format, "%s", "%[^\n]")
}
