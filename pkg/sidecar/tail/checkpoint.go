package tail

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var offsetsBucket = []byte("offsets")

// CheckpointStore 保存每个文件已处理到的偏移量
type CheckpointStore interface {
	Load(path string) (offset int64, ok bool, err error)
	Save(path string, offset int64) error
	Close() error
}

// NopCheckpoints 不持久化任何偏移量
type NopCheckpoints struct{}

func (NopCheckpoints) Load(string) (int64, bool, error) { return 0, false, nil }
func (NopCheckpoints) Save(string, int64) error        { return nil }
func (NopCheckpoints) Close() error                    { return nil }

// BoltCheckpoints 基于 bbolt 的偏移量存储
type BoltCheckpoints struct {
	db *bbolt.DB
}

// OpenBoltCheckpoints 打开（不存在则创建）偏移量数据库
func OpenBoltCheckpoints(path string) (*BoltCheckpoints, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建检查点目录失败: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开检查点数据库失败: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(offsetsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化检查点数据库失败: %w", err)
	}
	return &BoltCheckpoints{db: db}, nil
}

func (b *BoltCheckpoints) Load(path string) (int64, bool, error) {
	var (
		offset int64
		found  bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(offsetsBucket).Get([]byte(path))
		if len(v) != 8 {
			return nil
		}
		offset = int64(binary.BigEndian.Uint64(v))
		found = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("读取检查点失败: %w", err)
	}
	return offset, found, nil
}

func (b *BoltCheckpoints) Save(path string, offset int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(offset))
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(offsetsBucket).Put([]byte(path), buf)
	})
	if err != nil {
		return fmt.Errorf("保存检查点失败: %w", err)
	}
	return nil
}

func (b *BoltCheckpoints) Close() error {
	return b.db.Close()
}
