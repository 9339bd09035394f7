package naming

import (
	"strings"
	"testing"
)

// TestSanitizeDisplayName проверяет очистку отображаемого имени.
func TestSanitizeDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"report.pdf", "report.pdf"},
		{"My Photo.jpg", "My Photo.jpg"},
		{"../../etc/passwd", "passwd"},
		{"dir/sub/file.txt", "file.txt"},
		{"C:\\Users\\admin\\doc.docx", "doc.docx"},
		{"evil\x00name\x1f.txt", "evilname.txt"},
		{"with\"quote.txt", "withquote.txt"},
		{"", "file"},
		{"   ", "file"},
		{"\x00\x01\x02", "file"},
		{".", "file"},
		{"..", "file"},
		{"отчёт за квартал.xlsx", "отчёт за квартал.xlsx"},
	}

	for _, tt := range tests {
		if got := SanitizeDisplayName(tt.input); got != tt.expected {
			t.Errorf("SanitizeDisplayName(%q): ожидалось %q, получено %q", tt.input, tt.expected, got)
		}
	}
}

// TestSanitizeDisplayName_Bounded проверяет ограничение длины.
func TestSanitizeDisplayName_Bounded(t *testing.T) {
	long := strings.Repeat("a", 500) + ".bin"
	got := SanitizeDisplayName(long)
	if len([]rune(got)) > maxDisplayNameLen {
		t.Errorf("имя не ограничено по длине: %d рун", len([]rune(got)))
	}
}

// TestNewStorageFilename проверяет формат имени хранения.
func TestNewStorageFilename(t *testing.T) {
	name, err := NewStorageFilename()
	if err != nil {
		t.Fatalf("ошибка генерации: %v", err)
	}

	if !strings.HasSuffix(name, StorageExt) {
		t.Errorf("имя должно оканчиваться на %s: %s", StorageExt, name)
	}
	hexPart := strings.TrimSuffix(name, StorageExt)
	if len(hexPart) != storageNameBytes*2 {
		t.Errorf("ожидалось %d hex-символов, получено %d", storageNameBytes*2, len(hexPart))
	}
}

// TestNewStorageFilename_Unique проверяет отсутствие коллизий
// на 10000 итераций.
func TestNewStorageFilename_Unique(t *testing.T) {
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		name, err := NewStorageFilename()
		if err != nil {
			t.Fatalf("итерация %d: ошибка генерации: %v", i, err)
		}
		if seen[name] {
			t.Fatalf("итерация %d: коллизия имени хранения: %s", i, name)
		}
		seen[name] = true
	}
}

// TestStorageFilename_NeverEqualsDisplayName проверяет, что имя хранения
// никогда не совпадает с очищенным отображаемым именем.
func TestStorageFilename_NeverEqualsDisplayName(t *testing.T) {
	inputs := []string{"report.pdf", "file", "a.file", strings.Repeat("x", 32) + ".file"}
	for _, in := range inputs {
		display := SanitizeDisplayName(in)
		storage, err := NewStorageFilename()
		if err != nil {
			t.Fatalf("ошибка генерации: %v", err)
		}
		if storage == display {
			t.Errorf("имя хранения совпало с отображаемым: %s", storage)
		}
	}
}

// TestNewDownloadToken проверяет длину и уникальность токена скачивания.
func TestNewDownloadToken(t *testing.T) {
	tok, err := NewDownloadToken()
	if err != nil {
		t.Fatalf("ошибка генерации: %v", err)
	}
	if len(tok) != downloadTokenBytes*2 {
		t.Errorf("ожидалось %d символов, получено %d", downloadTokenBytes*2, len(tok))
	}

	other, err := NewDownloadToken()
	if err != nil {
		t.Fatalf("ошибка генерации: %v", err)
	}
	if tok == other {
		t.Error("два вызова вернули одинаковый токен")
	}
}

// TestTokenIndependentOfStorageName проверяет, что токен и имя хранения
// генерируются независимо и не совпадают.
func TestTokenIndependentOfStorageName(t *testing.T) {
	name, err := NewStorageFilename()
	if err != nil {
		t.Fatal(err)
	}
	tok, err := NewDownloadToken()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(tok, strings.TrimSuffix(name, StorageExt)) {
		t.Error("токен скачивания содержит имя хранения")
	}
}
