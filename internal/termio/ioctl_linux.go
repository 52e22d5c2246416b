package termio

import (
	ioctl "github.com/daedaluz/goioctl"
	"unsafe"
)

// ioctl request numbers for the termios2 / modem-line / flush calls the
// transport needs. Lifted from the kernel's asm-generic/ioctls.h; apart from
// tiocmget, which is defined but not issued, only the subset Device actually
// issues is kept.
var (
	tcgets2 = ioctl.IOR('T', 0x2A, unsafe.Sizeof(Termios2{}))
	tcsets2 = ioctl.IOW('T', 0x2B, unsafe.Sizeof(Termios2{}))

	tcflsh = uintptr(0x540B)

	tiocmget = uintptr(0x5415) // get modem line status
	tiocmbis = uintptr(0x5416) // set indicated modem bits
	tiocmbic = uintptr(0x5417) // clear indicated modem bits
)
