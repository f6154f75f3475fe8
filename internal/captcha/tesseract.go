package captcha

import "github.com/otiai10/gosseract/v2"

// TesseractRecognizer runs OCR with a digit-only whitelist. A fresh
// client per call keeps it safe under concurrent sessions; gosseract
// clients are not goroutine-safe.
type TesseractRecognizer struct {
	// Language passed to tesseract, "eng" when empty.
	Language string
}

func (r *TesseractRecognizer) Recognize(image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	lang := r.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		return "", err
	}
	if err := client.SetWhitelist("0123456789"); err != nil {
		return "", err
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", err
	}
	return client.Text()
}
