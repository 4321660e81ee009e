//go:build darwin || linux

package nettools

import "golang.org/x/sys/unix"

var _ = func() error { // make sure this executes before func init()
	supported[ModePoll] = pollReadable
	return nil
}()

func pollReadable(fd int) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return true
		}
		return n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0
	}
}
