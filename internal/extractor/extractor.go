// Пакет extractor — извлечение плоского текста из бинарного PDF-документа CV.
// Чистая функция: без сети и базы данных, детерминирована для данного входа.
package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// minTextLength — минимальная длина извлечённого текста (в рунах)
// после нормализации пробелов. Более короткий текст считается
// непригодным для скоринга.
const minTextLength = 10

// ExtractionError — ошибка извлечения текста из CV.
type ExtractionError struct {
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ошибка извлечения текста: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("ошибка извлечения текста: %s", e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extract извлекает плоский текст из PDF-документа.
// Возвращает ExtractionError, если документ не разбирается
// или извлечённый текст после нормализации короче minTextLength.
func Extract(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", &ExtractionError{Message: "пустой документ"}
	}

	// Библиотека pdf паникует на некоторых повреждённых файлах;
	// перехватываем панику и превращаем в ExtractionError.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Message: fmt.Sprintf("повреждённый PDF: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Message: "документ не является корректным PDF", Err: err}
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		return "", &ExtractionError{Message: "не удалось извлечь текст", Err: err}
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plainText); err != nil {
		return "", &ExtractionError{Message: "не удалось прочитать извлечённый текст", Err: err}
	}

	normalized := Normalize(buf.String())
	if len([]rune(normalized)) < minTextLength {
		return "", &ExtractionError{Message: "извлечённый текст пуст или слишком короток"}
	}

	return normalized, nil
}

// Normalize схлопывает последовательности пробельных символов в один
// пробел и обрезает пробелы по краям.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
