// upload.go — сервис загрузки изображений публикаций и аватаров.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/blockhood/internal/storage/filestore"
)

// Prometheus-метрики загрузок.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bh_uploads_total",
		Help: "Общее количество загрузок изображений по результату.",
	}, []string{"result"})
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bh_upload_bytes_total",
		Help: "Общий объём успешно загруженных изображений в байтах.",
	})
)

// Допустимые расширения и соответствующие им MIME-типы.
var allowedImageTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
}

// Допустимые префиксы (подкаталоги) загрузок.
var allowedPrefixes = map[string]bool{
	"":         true,
	"guides/":  true,
	"events/":  true,
	"careers/": true,
	"avatars/": true,
}

// sniffLen — объём данных для определения типа содержимого.
const sniffLen = 512

// maxNameAttempts — число попыток подобрать свободное имя файла.
const maxNameAttempts = 5

// UploadParams — параметры загрузки.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// Filename — исходное имя файла (для расширения)
	Filename string
	// Prefix — подкаталог: guides/, events/, careers/, avatars/ или пусто
	Prefix string
	// Size — заявленный размер (из multipart), -1 если неизвестен
	Size int64
	// UploadedBy — идентификатор пользователя (sub из JWT)
	UploadedBy string
}

// UploadResult — результат загрузки.
type UploadResult struct {
	// Path — путь файла относительно /uploads/
	Path        string `json:"path"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Checksum    string `json:"checksum"`
}

// UploadService — сохранение изображений и их выдача.
type UploadService struct {
	store         *filestore.FileStore
	publicBaseURL string
	maxSize       int64
	logger        *slog.Logger
	now           func() time.Time
}

// NewUploadService создаёт сервис загрузок.
// publicBaseURL — внешний адрес API, к нему добавляется /uploads/<path>.
func NewUploadService(store *filestore.FileStore, publicBaseURL string, maxSize int64, logger *slog.Logger) *UploadService {
	return &UploadService{
		store:         store,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxSize:       maxSize,
		logger:        logger.With(slog.String("component", "upload_service")),
		now:           time.Now,
	}
}

// MaxSize возвращает максимальный размер изображения в байтах.
func (s *UploadService) MaxSize() int64 {
	return s.maxSize
}

// Upload проверяет и сохраняет изображение.
//
// Поток:
//  1. Проверка префикса, расширения и заявленного размера
//  2. Определение типа по первым 512 байтам и сверка с расширением
//  3. Запись <prefix><unix-millis>.<ext> с ограничением размера
func (s *UploadService) Upload(p UploadParams) (*UploadResult, error) {
	res, err := s.upload(p)
	switch {
	case err == nil:
		uploadsTotal.WithLabelValues("ok").Inc()
		uploadBytesTotal.Add(float64(res.Size))
	case errors.Is(err, ErrValidation):
		uploadsTotal.WithLabelValues("invalid").Inc()
	case errors.Is(err, ErrPayloadTooLarge):
		uploadsTotal.WithLabelValues("too_large").Inc()
	default:
		uploadsTotal.WithLabelValues("error").Inc()
	}
	return res, err
}

func (s *UploadService) upload(p UploadParams) (*UploadResult, error) {
	if !allowedPrefixes[p.Prefix] {
		return nil, validationf("prefix: допустимые значения guides/, events/, careers/, avatars/ или пусто")
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p.Filename), "."))
	wantType, ok := allowedImageTypes[ext]
	if !ok {
		return nil, validationf("допустимые форматы изображений: png, jpg, jpeg, webp")
	}

	if p.Size > s.maxSize {
		return nil, fmt.Errorf("%w: %d байт при максимуме %d", ErrPayloadTooLarge, p.Size, s.maxSize)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(p.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("чтение файла: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, validationf("файл пуст")
	}
	if got := http.DetectContentType(head); got != wantType {
		return nil, validationf("содержимое (%s) не соответствует расширению .%s", got, ext)
	}

	body := io.MultiReader(bytes.NewReader(head), p.Reader)
	base := s.now().UnixMilli()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		storagePath := p.Prefix + strconv.FormatInt(base+int64(attempt), 10) + "." + ext

		saved, err := s.store.SaveFile(body, storagePath, s.maxSize)
		switch {
		case err == nil:
			s.logger.Info("Изображение загружено",
				slog.String("path", saved.StoragePath),
				slog.Int64("size", saved.Size),
				slog.String("user_id", p.UploadedBy),
			)
			return &UploadResult{
				Path:        saved.StoragePath,
				URL:         s.PublicURL(saved.StoragePath),
				Size:        saved.Size,
				ContentType: wantType,
				Checksum:    saved.Checksum,
			}, nil
		case errors.Is(err, filestore.ErrExists):
			// Имя занято загрузкой в ту же миллисекунду, данные ещё не прочитаны
			continue
		case errors.Is(err, filestore.ErrTooLarge):
			return nil, fmt.Errorf("%w: максимум %d байт", ErrPayloadTooLarge, s.maxSize)
		default:
			return nil, fmt.Errorf("сохранение файла: %w", err)
		}
	}
	return nil, fmt.Errorf("не удалось подобрать свободное имя файла за %d попыток", maxNameAttempts)
}

// PublicURL возвращает публичный URL загруженного файла.
func (s *UploadService) PublicURL(storagePath string) string {
	return s.publicBaseURL + "/uploads/" + storagePath
}

// Open открывает загруженный файл для выдачи и возвращает его MIME-тип.
func (s *UploadService) Open(storagePath string) (*os.File, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(storagePath), "."))
	contentType, ok := allowedImageTypes[ext]
	if !ok {
		return nil, "", fmt.Errorf("%w: файл %s", ErrNotFound, storagePath)
	}

	f, err := s.store.Open(storagePath)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) || errors.Is(err, filestore.ErrInvalidPath) {
			return nil, "", fmt.Errorf("%w: файл %s", ErrNotFound, storagePath)
		}
		return nil, "", err
	}
	return f, contentType, nil
}
