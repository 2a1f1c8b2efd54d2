//go:build !sonic

package cloudsdk

import "github.com/goccy/go-json"

// for imroc/req and record decoding
var jsonMarshal = json.Marshal
var jsonUnmarshal = json.Unmarshal
