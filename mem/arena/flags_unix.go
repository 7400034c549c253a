//go:build unix && !linux

package arena

const mmapExtraFlags = 0
