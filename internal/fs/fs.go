// Package fs holds the file system helpers of the sigma tools.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirPerm is the permission of the folders holding key material.
	DirPerm = 0o740
	// SecretPerm is the permission of secret files, such as witnesses.
	SecretPerm = 0o600
	// PublicPerm is the permission of instances, proofs and configs.
	PublicPerm = 0o644
)

// CreateSecureFolder creates folder with DirPerm if it does not exist yet. An
// existing folder is left untouched.
func CreateSecureFolder(folder string) error {
	exists, err := Exists(folder)
	if err != nil {
		return err
	}
	if exists {
		info, err := os.Stat(folder)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("fs: %s is not a folder", folder)
		}
		return nil
	}
	return os.MkdirAll(folder, DirPerm)
}

// Exists returns whether the given file or directory exists.
func Exists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}

// CreateSecureFile creates, or truncates, a file readable and writable by its
// owner only and returns the file handle.
func CreateSecureFile(file string) (*os.File, error) {
	return createFile(file, SecretPerm)
}

// CreatePublicFile is CreateSecureFile with PublicPerm.
func CreatePublicFile(file string) (*os.File, error) {
	return createFile(file, PublicPerm)
}

func createFile(file string, perm os.FileMode) (*os.File, error) {
	if err := CreateSecureFolder(filepath.Dir(file)); err != nil {
		return nil, err
	}
	fd, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return nil, err
	}
	// the mode of an existing file is kept by OpenFile
	if err := fd.Chmod(perm); err != nil {
		fd.Close()
		return nil, err
	}
	return fd, nil
}
