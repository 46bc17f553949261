package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// Message keys. The key doubles as the English text.
const (
	MsgUnsupportedImage = "Please select a valid image file (PNG, JPG, JPEG, GIF, BMP)"
	MsgUnsupportedVideo = "Please select a valid video file (MP4, AVI, MOV, MKV, WMV)"
	MsgUnsupportedType  = "Unsupported file type"
	MsgTooLarge         = "File size must be under %s"
	MsgNotANumber       = "Enter a valid value"
	MsgOutOfRange       = "%s must be between %v and %v"
	MsgStartAfterEnd    = "Start time must be before end time"
	MsgEndPastDuration  = "End time cannot exceed the video length"
	MsgNegativeTime     = "Times cannot be negative"
	MsgUnknownFamily    = "Unknown option: %s"
	MsgPresetOnly       = "%s accepts preset values only"
	MsgNotAPreset       = "%s is not an available value for %s"
	MsgNoUpload         = "Please upload a file first"
	MsgInFlight         = "A request is already in progress"
	MsgNotCompleted     = "Nothing to download yet"
	MsgUploadFailed     = "File upload error"
	MsgProcessFailed    = "Processing error"
	MsgConnection       = "Server connection error: %v"

	MsgUploaded       = "File uploaded successfully!"
	MsgProcessing     = "Processing..."
	MsgCompleted      = "Success: %s"
	MsgSelectedRange  = "Selected range: %s - %s (%d seconds)"
	MsgEstimate       = "Estimated frame count: %d"
	MsgFolderSelected = "Folder selected: %s"
	MsgFileInfo       = "File: %s | Size: %s | Type: %s"
	MsgFileInfoVideo  = "File: %s | Size: %s | Duration: %s | Type: %s"
)

var turkish = map[string]string{
	MsgUnsupportedImage: "Lütfen geçerli bir resim dosyası seçin (PNG, JPG, JPEG, GIF, BMP)",
	MsgUnsupportedVideo: "Lütfen geçerli bir video dosyası seçin (MP4, AVI, MOV, MKV, WMV)",
	MsgUnsupportedType:  "Desteklenmeyen dosya türü",
	MsgTooLarge:         "Dosya boyutu %s'dan küçük olmalıdır",
	MsgNotANumber:       "Geçerli bir değer girin",
	MsgOutOfRange:       "%s değeri %v ile %v arasında olmalıdır",
	MsgStartAfterEnd:    "Başlangıç zamanı bitiş zamanından küçük olmalıdır",
	MsgEndPastDuration:  "Bitiş zamanı video süresinden büyük olamaz",
	MsgNegativeTime:     "Zaman değerleri negatif olamaz",
	MsgUnknownFamily:    "Bilinmeyen seçenek: %s",
	MsgPresetOnly:       "%s yalnızca hazır değerleri kabul eder",
	MsgNotAPreset:       "%s, %s için geçerli bir değer değil",
	MsgNoUpload:         "Lütfen önce bir dosya yükleyin",
	MsgInFlight:         "Bir işlem zaten devam ediyor",
	MsgNotCompleted:     "Henüz indirilecek bir dosya yok",
	MsgUploadFailed:     "Dosya yükleme hatası",
	MsgProcessFailed:    "İşlem hatası",
	MsgConnection:       "Sunucu bağlantı hatası: %v",

	MsgUploaded:       "Dosya başarıyla yüklendi!",
	MsgProcessing:     "İşleniyor...",
	MsgCompleted:      "Başarı: %s",
	MsgSelectedRange:  "Seçilen aralık: %s - %s (%d saniye)",
	MsgEstimate:       "Tahmini frame sayısı: %d",
	MsgFolderSelected: "Klasör seçildi: %s",
	MsgFileInfo:       "Dosya: %s | Boyut: %s | Tür: %s",
	MsgFileInfoVideo:  "Dosya: %s | Boyut: %s | Süre: %s | Tür: %s",

	"zoom":         "zoom",
	"rotation":     "döndürme",
	"flip":         "çevirme",
	"blur":         "bulanıklaştırma",
	"augmentation": "sigma",
	"interval":     "aralık",
	"time":         "zaman aralığı",
}

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range turkish {
		if err := b.SetString(language.Turkish, key, msg); err != nil {
			panic(err)
		}
	}
	return b
}
