package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/trajnet/internal/tensor"
)

// PrefixStateDict copies src into dst, prefixing every key with prefix + ".".
func PrefixStateDict(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

// ScopeStateDict returns the entries of stateDict under prefix + ".", with
// the prefix stripped.
func ScopeStateDict(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	scoped := make(map[string]*tensor.RawTensor)
	prefix += "."
	for key, raw := range stateDict {
		if name, ok := strings.CutPrefix(key, prefix); ok {
			scoped[name] = raw
		}
	}
	return scoped
}

// loadParameters loads every parameter from stateDict by its name.
func loadParameters[B tensor.Backend](stateDict map[string]*tensor.RawTensor, params ...*Parameter[B]) error {
	for _, p := range params {
		raw, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("missing %s in state dict", p.Name())
		}
		if err := p.Load(raw); err != nil {
			return err
		}
	}
	return nil
}

func parameterStateDict[B tensor.Backend](params ...*Parameter[B]) map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		stateDict[p.Name()] = p.Tensor().Raw()
	}
	return stateDict
}
