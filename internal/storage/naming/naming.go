// Пакет naming — безопасное именование файлов.
// Разделяет два независимых имени: отображаемое (для презентации
// и Content-Disposition) и имя хранения (криптослучайный токен
// с фиксированным расширением, не зависящий от входного имени).
package naming

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// StorageExt — фиксированное расширение файлов в хранилище.
// Намеренно не отражает оригинальное расширение файла.
const StorageExt = ".file"

// maxDisplayNameLen — максимальная длина отображаемого имени в рунах.
const maxDisplayNameLen = 128

// storageNameBytes — количество случайных байт в имени хранения (128 бит).
const storageNameBytes = 16

// downloadTokenBytes — количество случайных байт в токене скачивания (256 бит).
const downloadTokenBytes = 32

// SanitizeDisplayName очищает имя файла для отображения и заголовков.
// Убирает разделители путей и управляющие символы, ограничивает длину.
// Никогда не возвращает ошибку: пустой после очистки вход
// деградирует до "file".
func SanitizeDisplayName(name string) string {
	// Отбрасываем компоненты пути: берём последний сегмент
	if i := strings.LastIndexAny(name, "/\\"); i != -1 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) || r == '"' {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.TrimSpace(b.String())
	// Имена "." и ".." не несут смысла и опасны как компоненты пути
	if cleaned == "." || cleaned == ".." {
		cleaned = ""
	}
	if cleaned == "" {
		return "file"
	}

	runes := []rune(cleaned)
	if len(runes) > maxDisplayNameLen {
		cleaned = string(runes[:maxDisplayNameLen])
	}
	return cleaned
}

// NewStorageFilename генерирует имя файла для хранения на диске:
// 32 hex-символа криптослучайности + фиксированное расширение.
// Имя не зависит ни от оригинального имени, ни от расширения.
func NewStorageFilename() (string, error) {
	tok, err := randomHex(storageNameBytes)
	if err != nil {
		return "", fmt.Errorf("генерация имени хранения: %w", err)
	}
	return tok + StorageExt, nil
}

// NewDownloadToken генерирует токен скачивания: 64 hex-символа.
// Генерируется независимо от имени хранения — переиспользование имени
// файла как токена раскрывало бы физический путь.
func NewDownloadToken() (string, error) {
	tok, err := randomHex(downloadTokenBytes)
	if err != nil {
		return "", fmt.Errorf("генерация токена скачивания: %w", err)
	}
	return tok, nil
}

// randomHex возвращает hex-строку из n криптослучайных байт.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
