package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 文档上传相关常量
const (
	MimeTextPlain    = "text/plain"
	MimeTextMarkdown = "text/markdown"
	MimeTextCSV      = "text/csv"
	MimeTextHTML     = "text/html"
	MimeOctetStream  = "application/octet-stream"
)

var (
	AllowedDocumentExtensions = []string{".txt", ".md", ".markdown", ".csv", ".html", ".htm"}
)
