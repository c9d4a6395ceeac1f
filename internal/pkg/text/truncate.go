package text

// Truncate 按字符（rune）截断，超出部分以 "..." 代替；max<=0 时原样返回。
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
