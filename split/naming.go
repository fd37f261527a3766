package split

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// OutputPath names the output of partition index (0-based) of n. The
// 1-based partition number is inserted before the extension, zero-padded
// to the digits of n.
//
// Example: OutputPath("scan.nxs", 0, 12) returns "scan_01.nxs".
func OutputPath(input string, index, n int) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	width := len(strconv.Itoa(n))
	return fmt.Sprintf("%s_%0*d%s", base, width, index+1, ext)
}
