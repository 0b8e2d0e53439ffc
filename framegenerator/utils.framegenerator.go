package framegenerator

import (
	"fmt"
	"path/filepath"
	"strings"
)

func FrameName(index int, format string) string {
	return fmt.Sprintf("%0*d.%s", frameNameDigits, index, format)
}

func framePath(dir string, index int, format string) string {
	return filepath.Join(dir, FrameName(index, format))
}

func framesGlob(dir string, format string) string {
	return filepath.Join(dir, strings.Repeat("[0-9]", frameNameDigits)+"."+format)
}

func getFileNameWithoutExtension(filePath string) string {
	fileName := filepath.Base(filePath)
	return fileName[:len(fileName)-len(filepath.Ext(fileName))]
}
