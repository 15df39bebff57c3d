package util

import (
	"strconv"
	"strings"
)

// ParseBoolLoose 判断题作答解析，接受 true/false/t/f/1/0，忽略大小写和首尾空格
func ParseBoolLoose(s string) (bool, bool) {
	v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return false, false
	}
	return v, true
}
