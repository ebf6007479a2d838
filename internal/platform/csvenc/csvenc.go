// CSVエクスポートの文字コード対応。
// Excel(日本語環境)向けに cp932 での出力を選べるようにしている。
package csvenc

import (
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const (
	EncodingUTF8  = "utf-8"
	EncodingCP932 = "cp932"
)

// NewWriter は指定エンコーディングで書き出すCSVライタを返す。
// 空文字は utf-8 扱い。
func NewWriter(w io.Writer, encoding string) (*csv.Writer, error) {
	switch encoding {
	case "", EncodingUTF8:
		return csv.NewWriter(w), nil
	case EncodingCP932:
		return csv.NewWriter(transform.NewWriter(w, japanese.ShiftJIS.NewEncoder())), nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// ContentType はレスポンスヘッダ用
func ContentType(encoding string) string {
	if encoding == EncodingCP932 {
		return "text/csv; charset=Shift_JIS"
	}
	return "text/csv; charset=utf-8"
}
