// Пакет vault — операции с физическими файлами защищённого хранилища.
// Отвечает за: защитную разметку директории (deny-all маркер и
// нейтральная заглушка), streaming-запись с подсчётом SHA-256 на лету,
// чтение, удаление и перенос директории хранения.
//
// Единственная точка координации между запросами — RWMutex хранилища:
// записи захватывают разделяемую блокировку, перенос директории —
// эксклюзивную, чтобы загрузка не могла писать в директорию посреди
// переименования. Скачивания блокировок не берут.
package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/arturkryukov/securevault/internal/storage/naming"
)

// Имена защитных файлов в корне директории хранения.
const (
	// GuardFileName — deny-all маркер для веб-сервера.
	GuardFileName = ".htaccess"
	// PlaceholderFileName — нейтральная заглушка, чтобы директория
	// не отдавалась листингом при обходе веб-сервером.
	PlaceholderFileName = "index.html"
)

// guardContent — содержимое deny-all маркера.
const guardContent = "Order Deny,Allow\nDeny from all\n"

// placeholderContent — содержимое нейтральной заглушки.
const placeholderContent = "<!-- Silence is golden. -->\n"

// maxNameAttempts — предел попыток подбора свободного имени хранения.
const maxNameAttempts = 5

// Ошибки хранилища.
var (
	// ErrNameExhausted — не удалось подобрать свободное имя хранения.
	ErrNameExhausted = errors.New("исчерпаны попытки подбора имени хранения")
	// ErrTargetExists — целевая директория переноса уже существует.
	ErrTargetExists = errors.New("целевая директория уже существует")
)

// Vault — физическое хранилище файлов под общим корнем.
// Файлы лежат в <storageRoot>/<имя директории из политики>/.
type Vault struct {
	// storageRoot — корень, внутри которого живёт именованная директория
	storageRoot string
	// mu сериализует перенос директории относительно записей
	mu     sync.RWMutex
	logger *slog.Logger
}

// SaveResult — результат сохранения файла.
type SaveResult struct {
	// StorageName — имя файла внутри директории хранения
	StorageName string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
}

// New создаёт Vault. Создаёт корень хранилища, если он не существует.
func New(storageRoot string, logger *slog.Logger) (*Vault, error) {
	abs, err := filepath.Abs(storageRoot)
	if err != nil {
		return nil, fmt.Errorf("корень хранилища %s: %w", storageRoot, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать корень хранилища %s: %w", abs, err)
	}

	return &Vault{
		storageRoot: abs,
		logger:      logger.With(slog.String("component", "vault")),
	}, nil
}

// StorageRoot возвращает абсолютный путь к корню хранилища.
func (v *Vault) StorageRoot() string {
	return v.storageRoot
}

// DirPath возвращает абсолютный путь директории хранения по её имени.
func (v *Vault) DirPath(dirName string) string {
	return filepath.Join(v.storageRoot, dirName)
}

// EnsureDir создаёт директорию хранения и устанавливает защитную
// разметку. Используется при старте сервиса, чтобы guard-файлы стояли
// до первой загрузки.
func (v *Vault) EnsureDir(dirName string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	dir := v.DirPath(dirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию хранения %s: %w", dir, err)
	}
	v.ensureGuard(dir)
	return nil
}

// SaveFile записывает данные из reader в директорию dirName под
// криптослучайным именем, с подсчётом SHA-256 на лету.
//
// Перед записью устанавливает защитную разметку директории.
// Паттерн записи: temp файл → запись + SHA-256 → fsync → atomic rename.
// Имя подбирается с ограниченным числом повторов при коллизии.
//
// Держит разделяемую блокировку: перенос директории не может
// выполняться одновременно с записью.
func (v *Vault) SaveFile(dirName string, reader io.Reader) (*SaveResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	dir := v.DirPath(dirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранения %s: %w", dir, err)
	}

	// Защитная разметка — на каждую запись: директория могла быть
	// перенесена или пересоздана извне. Ошибка не прерывает загрузку.
	v.ensureGuard(dir)

	// Подбор свободного имени с ограниченным числом попыток
	var fullPath string
	found := false
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name, err := naming.NewStorageFilename()
		if err != nil {
			return nil, err
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			fullPath = candidate
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNameExhausted
	}

	tmpPath := fullPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StorageName: filepath.Base(fullPath),
		FullPath:    fullPath,
		Size:        size,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// ReadFile открывает файл по абсолютному пути для чтения.
// Вызывающий код обязан закрыть файл.
func (v *Vault) ReadFile(fullPath string) (*os.File, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", fullPath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", fullPath, err)
	}
	return f, nil
}

// DeleteFile удаляет файл по абсолютному пути.
// Возвращает nil, если файл уже не существует.
func (v *Vault) DeleteFile(fullPath string) error {
	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", fullPath, err)
	}
	return nil
}

// FileExists проверяет существование файла по абсолютному пути.
func (v *Vault) FileExists(fullPath string) bool {
	_, err := os.Stat(fullPath)
	return err == nil
}

// Migrate переносит директорию хранения oldName → newName одним
// атомарным переименованием. Вызывается только когда не существует
// ни одной записи файла (проверка на стороне сервиса настроек).
//
// Держит эксклюзивную блокировку: ни одна запись не может идти
// параллельно с переносом.
//
// Если старая директория не существует — переносить нечего, успех.
// Если целевая директория уже существует — ErrTargetExists:
// директории никогда не сливаются молча.
func (v *Vault) Migrate(oldName, newName string) error {
	if oldName == newName {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	oldPath := v.DirPath(oldName)
	newPath := v.DirPath(newName)

	if _, err := os.Stat(oldPath); os.IsNotExist(err) {
		// Загрузок ещё не было — директория появится лениво под новым именем
		return nil
	}

	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("%w: %s", ErrTargetExists, newPath)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("ошибка переноса директории %s → %s: %w", oldPath, newPath, err)
	}

	v.logger.Info("Директория хранения перенесена",
		slog.String("old", oldPath),
		slog.String("new", newPath),
	)
	return nil
}

// GuardInstalled проверяет наличие deny-all маркера в директории.
func (v *Vault) GuardInstalled(dirName string) bool {
	_, err := os.Stat(filepath.Join(v.DirPath(dirName), GuardFileName))
	return err == nil
}

// ensureGuard устанавливает защитную разметку директории: deny-all
// маркер и нейтральную заглушку. Идемпотентна и дешева — проверка
// выполняется на каждую запись.
//
// Ошибка записи маркера логируется, но не прерывает загрузку:
// разметка — слой глубокой обороны, контроль доступа к файлам
// обеспечивается правами веб-сервера.
func (v *Vault) ensureGuard(dir string) {
	// Маркер и заглушка проверяются независимо: любой из них мог быть
	// удалён извне по отдельности.
	guardPath := filepath.Join(dir, GuardFileName)
	if _, err := os.Stat(guardPath); err != nil {
		if werr := os.WriteFile(guardPath, []byte(guardContent), 0o640); werr != nil {
			v.logger.Warn("Не удалось записать deny-all маркер",
				slog.String("path", guardPath),
				slog.String("error", werr.Error()),
			)
		}
	}

	placeholderPath := filepath.Join(dir, PlaceholderFileName)
	if _, err := os.Stat(placeholderPath); err != nil {
		if werr := os.WriteFile(placeholderPath, []byte(placeholderContent), 0o640); werr != nil {
			v.logger.Warn("Не удалось записать заглушку директории",
				slog.String("path", placeholderPath),
				slog.String("error", werr.Error()),
			)
		}
	}
}
