package utils

import (
	"strings"
)

//Mainly contains redis command processing functions

// RedisCmdRewrite expands the short snapshot aliases in place:
// SNAPGET id key [ASBUFFER b] => SNAPSHOT GET id key [ASBUFFER b]
// SNAPRELEASE id => SNAPSHOT RELEASE id
func RedisCmdRewrite(args [][]string) {
	for i, arg := range args {
		if len(arg) == 0 {
			continue
		}
		switch strings.ToLower(arg[0]) {
		case "snapget":
			if len(arg) >= 3 {
				args[i] = append([]string{"snapshot", "get"}, arg[1:]...)
			}
		case "snaprelease":
			if len(arg) == 2 {
				args[i] = []string{"snapshot", "release", arg[1]}
			}
		default:
		}
	}
}
