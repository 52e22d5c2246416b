package termio

import (
	"syscall"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

var (
	tiocgptn   = ioctl.IOR('T', 0x30, unsafe.Sizeof(uint32(0)))
	tiocsptlck = ioctl.IOW('T', 0x31, unsafe.Sizeof(int32(0)))
)

// OpenPTY opens a fresh pseudoterminal pair and returns the master and slave
// ends as raw, unlocked Devices configured per cfg. Used by transport tests
// to exercise Send/Receive against a real tty pair instead of mocking the
// syscalls directly.
func OpenPTY(cfg Config) (master, slave *Device, err error) {
	mfd, err := syscall.Open("/dev/ptmx", syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, nil, err
	}
	var locked int32
	if err := ioctl.Ioctl(uintptr(mfd), tiocsptlck, uintptr(unsafe.Pointer(&locked))); err != nil {
		syscall.Close(mfd)
		return nil, nil, err
	}
	var n uint32
	if err := ioctl.Ioctl(uintptr(mfd), tiocgptn, uintptr(unsafe.Pointer(&n))); err != nil {
		syscall.Close(mfd)
		return nil, nil, err
	}

	slavePath := ptsPath(n)
	sfd, err := syscall.Open(slavePath, syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		syscall.Close(mfd)
		return nil, nil, err
	}

	m := &Device{fd: mfd}
	s := &Device{fd: sfd}
	if err := m.apply(cfg); err != nil {
		m.Close()
		s.Close()
		return nil, nil, err
	}
	if err := s.apply(cfg); err != nil {
		m.Close()
		s.Close()
		return nil, nil, err
	}
	return m, s, nil
}

func ptsPath(n uint32) string {
	const digits = "0123456789"
	if n == 0 {
		return "/dev/pts/0"
	}
	buf := make([]byte, 0, 10)
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return "/dev/pts/" + string(buf)
}
