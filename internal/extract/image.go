package extract

import (
	"sync"

	"docqa/internal/extract/ocr"
)

// Tesseract handles are not safe for concurrent use.
var ocrMu sync.Mutex

func recognize(lang string, data []byte) (string, error) {
	ocrMu.Lock()
	defer ocrMu.Unlock()
	client, err := ocr.New(lang)
	if err != nil {
		return "", err
	}
	defer client.Close()
	return client.RecognizeImage(data)
}
