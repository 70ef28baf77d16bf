package storage

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/spf13/afero"
)

// BlobStore 保存合成語音檔案，路徑一律為相對於根目錄的斜線路徑
type BlobStore struct {
	fs afero.Fs
}

// NewBlobStore 以 root 作為根目錄包裝任意 afero 檔案系統
func NewBlobStore(fs afero.Fs, root string) *BlobStore {
	if root != "" && root != "." {
		fs = afero.NewBasePathFs(fs, root)
	}
	return &BlobStore{fs: fs}
}

// NewDiskBlobStore 在本機磁碟 root 目錄下建立 BlobStore
func NewDiskBlobStore(root string) (*BlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return NewBlobStore(afero.NewOsFs(), root), nil
}

func (s *BlobStore) Save(name string, data []byte) error {
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, name, data, 0o644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	return nil
}

func (s *BlobStore) Read(name string) ([]byte, error) {
	return afero.ReadFile(s.fs, name)
}

// Delete 刪除檔案，檔案不存在時不視為錯誤
func (s *BlobStore) Delete(name string) error {
	if name == "" {
		return nil
	}
	err := s.fs.Remove(name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

func (s *BlobStore) Exists(name string) bool {
	ok, err := afero.Exists(s.fs, name)
	return err == nil && ok
}
