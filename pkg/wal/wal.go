package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀) - 適用於大多數檔案
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 適用於私鑰、機密檔
	FileModePrivate fs.FileMode = 0600
)

// maxLineSize 單筆紀錄上限
const maxLineSize = 1 << 20

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
type WAL struct {
	path      string
	file      *os.File
	mu        sync.Mutex
	onCorrupt func(line int, raw []byte)
}

// Option 設定 WAL
type Option func(*WAL)

// WithCorruptHandler 讀取時遇到無法解析的行會呼叫 fn，該行會被略過
// Rewrite 之後這些行就不存在了
func WithCorruptHandler(fn func(line int, raw []byte)) Option {
	return func(w *WAL) {
		w.onCorrupt = fn
	}
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string, opts ...Option) (*WAL, error) {
	file, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	if err := terminateTail(file); err != nil {
		file.Close()
		return nil, err
	}
	w := &WAL{path: path, file: file}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// terminateTail 檔尾若是寫到一半的紀錄，補上換行，之後追加的紀錄才不會接在同一行
func terminateTail(file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = file.Write([]byte{'\n'})
	return err
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
}

// Path 檔案路徑
func (w *WAL) Path() string {
	return w.path
}

// Write 寫入一筆資料並刷入硬碟
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	return w.file.Sync()
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAll 讀取所有資料
// callback 是一個函式，接收一筆 JSON 原始資料
// 這樣可以避免一次將所有資料載入記憶體，jsonRaw 只在 callback 內有效
// 無法解析的行 (例如 crash 時寫到一半的檔尾) 會被略過
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readAll(callback)
}

func (w *WAL) readAll(callback func(jsonRaw []byte) error) error {
	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	scanner := bufio.NewScanner(w.file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			if w.onCorrupt != nil {
				w.onCorrupt(lineNo, append([]byte(nil), line...))
			}
			continue
		}
		if err := callback(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Rewrite 只保留 keep 回傳 true 的紀錄
// 先寫入暫存檔再 rename 取代原檔
func (w *WAL) Rewrite(keep func(jsonRaw []byte) (bool, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf bytes.Buffer
	err := w.readAll(func(jsonRaw []byte) error {
		ok, err := keep(jsonRaw)
		if err != nil {
			return err
		}
		if ok {
			buf.Write(jsonRaw)
			buf.WriteByte('\n')
		}
		return nil
	})
	if err != nil {
		return err
	}

	tmp := w.path + ".tmp"
	if err := writeFileSync(tmp, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, w.path); err != nil {
		// rename 失敗時重新開啟原檔，WAL 仍可使用
		file, openErr := openAppend(w.path)
		if openErr == nil {
			w.file = file
		}
		return err
	}

	file, err := openAppend(w.path)
	if err != nil {
		return err
	}
	w.file = file
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, FileModeReadOnly)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
