package selection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/temirov/repo2txt/internal/utils"
)

const (
	recordIndent      = "  "
	temporaryPattern  = utils.RecordTemporaryPrefix + "*"
	recordPermissions = 0o644
)

// Save writes the record into root. Writers are serialized through a lock file
// and the record is replaced atomically so readers never observe partial content.
func Save(root string, record Record) error {
	if record.Version == "" {
		record.Version = RecordVersion
	}
	content, marshalErr := json.MarshalIndent(record, "", recordIndent)
	if marshalErr != nil {
		return fmt.Errorf("encode selection record: %w", marshalErr)
	}

	fileLock := flock.New(filepath.Join(root, utils.RecordLockFileName))
	if lockErr := fileLock.Lock(); lockErr != nil {
		return fmt.Errorf("acquire selection record lock in %s: %w", root, lockErr)
	}
	defer fileLock.Unlock()

	return atomicWrite(RecordPath(root), content)
}

func atomicWrite(targetPath string, content []byte) error {
	directory := filepath.Dir(targetPath)
	temporaryFile, createErr := os.CreateTemp(directory, temporaryPattern)
	if createErr != nil {
		return fmt.Errorf("create temporary record in %s: %w", directory, createErr)
	}
	temporaryPath := temporaryFile.Name()
	committed := false
	defer func() {
		if !committed {
			temporaryFile.Close()
			os.Remove(temporaryPath)
		}
	}()

	if _, writeErr := temporaryFile.Write(content); writeErr != nil {
		return fmt.Errorf("write temporary record: %w", writeErr)
	}
	if syncErr := temporaryFile.Sync(); syncErr != nil {
		return fmt.Errorf("sync temporary record: %w", syncErr)
	}
	if closeErr := temporaryFile.Close(); closeErr != nil {
		return fmt.Errorf("close temporary record: %w", closeErr)
	}
	if chmodErr := os.Chmod(temporaryPath, recordPermissions); chmodErr != nil {
		return fmt.Errorf("set record permissions: %w", chmodErr)
	}
	if renameErr := os.Rename(temporaryPath, targetPath); renameErr != nil {
		return fmt.Errorf("replace selection record %s: %w", targetPath, renameErr)
	}
	committed = true
	return nil
}
