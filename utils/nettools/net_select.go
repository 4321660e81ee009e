//go:build dragonfly || freebsd || netbsd || openbsd

package nettools

import "golang.org/x/sys/unix"

var _ = func() error { // make sure this executes before func init()
	supported[ModeSelect] = selectReadable
	return nil
}()

// capacity of unix.FdSet
const fdSetSize = 1024

func selectReadable(fd int) bool {
	if fd >= fdSetSize {
		return false
	}
	var set unix.FdSet
	set.Set(fd)
	tv := unix.Timeval{}
	n, err := unix.Select(fd+1, &set, nil, nil, &tv)
	if err != nil {
		return err != unix.EINTR
	}
	return n > 0 && set.IsSet(fd)
}
