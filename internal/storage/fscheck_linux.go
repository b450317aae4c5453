//go:build linux

package storage

import (
	"fmt"
	"syscall"
)

// linuxNetworkMagic maps statfs f_type values of network mounts to the names
// used in networkFilesystems.
var linuxNetworkMagic = map[uint64]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x517B:     "smbfs",
	0xFE534D42: "smb2",
	0x5346414F: "afs",
	0x01021997: "9p",
	0x00C36400: "ceph",
}

// detectFilesystemType names the mount holding the journal. Local mounts
// come back as their hex magic, which never matches a network name.
func detectFilesystemType(path string) (string, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return "", fmt.Errorf("statfs %q: %w", path, err)
	}
	magic := uint64(stat.Type)
	if name, ok := linuxNetworkMagic[magic]; ok {
		return name, nil
	}
	return fmt.Sprintf("0x%x", magic), nil
}
