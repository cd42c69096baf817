// Package ioctl encodes Linux ioctl request numbers and issues them on raw
// file descriptors.
package ioctl

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	nrBits   = 8
	typeBits = 8
	sizeBits = 14

	nrShift   = 0
	typeShift = nrShift + nrBits
	sizeShift = typeShift + typeBits
	dirShift  = sizeShift + sizeBits

	dirNone  = 0
	dirWrite = 1
	dirRead  = 2
)

// IOC mirrors the kernel's _IOC macro.
func IOC(dir, typ, nr, size uintptr) uintptr {
	return dir<<dirShift | typ<<typeShift | nr<<nrShift | size<<sizeShift
}

// IO mirrors _IO.
func IO(typ, nr uintptr) uintptr {
	return IOC(dirNone, typ, nr, 0)
}

// IOR mirrors _IOR.
func IOR(typ, nr, size uintptr) uintptr {
	return IOC(dirRead, typ, nr, size)
}

// IOW mirrors _IOW.
func IOW(typ, nr, size uintptr) uintptr {
	return IOC(dirWrite, typ, nr, size)
}

// IOWR mirrors _IOWR.
func IOWR(typ, nr, size uintptr) uintptr {
	return IOC(dirRead|dirWrite, typ, nr, size)
}

// Ptr issues an ioctl whose argument is a pointer.
func Ptr(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return fmt.Errorf("ioctl 0x%x: %w", req, errno)
	}
	return nil
}

// Int issues an ioctl whose argument is passed by value.
func Int(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return fmt.Errorf("ioctl 0x%x: %w", req, errno)
	}
	return nil
}

// String reads a NUL padded string through a read ioctl of the given
// buffer size.
func String(fd uintptr, typ, nr uintptr, size int) (string, error) {
	buf := make([]byte, size)
	if err := Ptr(fd, IOC(dirRead, typ, nr, uintptr(size)), unsafe.Pointer(&buf[0])); err != nil {
		return "", err
	}
	return trimNUL(buf), nil
}

func trimNUL(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}
