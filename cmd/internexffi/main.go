// Command internexffi is not an executable; it is built with
// `go build -buildmode=c-shared` (or c-archive) to produce the C ABI
// boundary consumed by non-Go embedders, mirroring the cdylib crate this
// rewriter was originally shipped as. The four exports below — three
// rewrite_* entry points plus free_string — are the entire surface.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"internex/pkg/ffi"
)

//export rewrite_html
func rewrite_html(input *C.char) *C.char {
	return dispatch(input, ffi.RewriteHTML)
}

//export rewrite_css
func rewrite_css(input *C.char) *C.char {
	return dispatch(input, ffi.RewriteCSS)
}

//export rewrite_js
func rewrite_js(input *C.char) *C.char {
	return dispatch(input, ffi.RewriteJS)
}

//export free_string
func free_string(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

func dispatch(input *C.char, rewrite func(string) (string, bool)) *C.char {
	if input == nil {
		return nil
	}
	result, ok := rewrite(C.GoString(input))
	if !ok {
		return nil
	}
	return C.CString(result)
}

func main() {}
