//go:build !sqlforge_debug

package core

func checkPlaceholders(string, *Binder) {}
