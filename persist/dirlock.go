package persist

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
)

// DirLock holds an advisory lock on the database directory so two processes
// cannot open it at once.
type DirLock struct {
	file *os.File
}

// AcquireDirLock takes the advisory lock, failing fast when another process
// holds it.
func AcquireDirLock(lockPath string) (*DirLock, error) {
	file, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errcode.NewError(errcode.ErrorDirectoryLocked, err.Error())
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		return nil, errcode.New(errcode.ErrorDirectoryLocked)
	}
	return &DirLock{file: file}, nil
}

func (l *DirLock) Release() error {
	if l.file == nil {
		return nil
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}
