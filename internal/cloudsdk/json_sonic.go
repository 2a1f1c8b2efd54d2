//go:build sonic

package cloudsdk

import "github.com/bytedance/sonic"

// for imroc/req and record decoding
var jsonMarshal = sonic.Marshal
var jsonUnmarshal = sonic.Unmarshal
