// Пакет filestore — хранение загруженных изображений на диске.
// Имя файла резервируется через O_EXCL, данные пишутся во временный
// файл с подсчётом SHA-256 на лету, затем fsync и rename на место резерва.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Ошибки файлового хранилища.
var (
	// ErrTooLarge — данные превышают допустимый размер.
	ErrTooLarge = errors.New("файл превышает допустимый размер")
	// ErrNotFound — файл не найден.
	ErrNotFound = errors.New("файл не найден")
	// ErrInvalidPath — путь выходит за пределы директории хранения.
	ErrInvalidPath = errors.New("недопустимый путь файла")
	// ErrExists — файл с таким путём уже существует.
	ErrExists = errors.New("файл уже существует")
)

// FileStore — управление загруженными файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (BH_UPLOADS_DIR)
	dataDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StoragePath — относительный путь файла в dataDir (через "/")
	StoragePath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// New создаёт FileStore и директорию хранения, если её нет.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// resolve переводит относительный путь в абсолютный внутри dataDir.
func (fs *FileStore) resolve(storagePath string) (string, error) {
	clean := path.Clean("/" + storagePath)
	if clean == "/" || strings.Contains(storagePath, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, storagePath)
	}
	return filepath.Join(fs.dataDir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// SaveFile записывает данные из reader в storagePath. Если данных больше
// maxSize байт — запись прерывается с ErrTooLarge (maxSize <= 0 — без лимита).
// Существующий файл никогда не перезаписывается: занятое имя — ErrExists,
// при этом reader ещё не прочитан.
//
// Паттерн: резерв имени (O_EXCL) → temp файл → запись + SHA-256 → fsync →
// rename поверх своего резерва. При ошибке temp файл и резерв удаляются.
func (fs *FileStore) SaveFile(reader io.Reader, storagePath string, maxSize int64) (*SaveResult, error) {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории: %w", err)
	}

	if err := reserve(fullPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, storagePath)
		}
		return nil, fmt.Errorf("ошибка резервирования имени %s: %w", storagePath, err)
	}

	res, err := fs.writeReserved(reader, fullPath, maxSize)
	if err != nil {
		if derr := fs.DeleteFile(storagePath); derr != nil {
			err = errors.Join(err, derr)
		}
		return nil, err
	}
	res.StoragePath = storagePath
	return res, nil
}

// reserve атомарно создаёт пустой файл-резерв; занятое имя — os.ErrExist.
func reserve(fullPath string) error {
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return err
	}
	return f.Close()
}

// writeReserved пишет данные во временный файл и переносит его на место резерва.
func (fs *FileStore) writeReserved(reader io.Reader, fullPath string, maxSize int64) (*SaveResult, error) {
	f, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()
	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}

	src := reader
	if maxSize > 0 {
		// Читаем на байт больше лимита, чтобы отличить «ровно maxSize» от превышения
		src = io.LimitReader(reader, maxSize+1)
	}

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(src, hasher))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if maxSize > 0 && size > maxSize {
		cleanup()
		return nil, fmt.Errorf("%w: больше %d байт", ErrTooLarge, maxSize)
	}

	if err := f.Sync(); err != nil {
		cleanup()
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o640); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка установки прав: %w", err)
	}

	// Резерв принадлежит этому вызову, rename заменяет только его
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(storagePath string) (*os.File, error) {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка чтения атрибутов %s: %w", storagePath, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
	}
	return f, nil
}

// DeleteFile удаляет файл. Отсутствующий файл — не ошибка.
func (fs *FileStore) DeleteFile(storagePath string) error {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}
