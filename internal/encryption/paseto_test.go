package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealLocal_KnownAnswer(t *testing.T) {
	k := seqKey(0x70)
	message := []byte(`{"data":"this is a secret message","exp":"2022-01-01T00:00:00+00:00"}`)

	nonce := make([]byte, localNonceSize)
	for i := range nonce {
		nonce[i] = 0xa0 + byte(i)
	}

	tests := []struct {
		name      string
		nonce     []byte
		footer    []byte
		assertion []byte
		want      string
	}{
		{
			name:  "zero nonce without footer",
			nonce: make([]byte, localNonceSize),
			want:  "v4.local.AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAQAr68PS4AXe7If_ZgesdkUMvSwscFlAl1pk5HC0e8kApeaqMfGo_7OpBnwJOAbY9V7WU6abu74MmcUE8YWAiaArVI8XJ5hOb_4v9RmDkneN0S92dx0OW4pgy7omxgf3S8c3LlQg",
		},
		{
			name:      "footer and implicit assertion",
			nonce:     nonce,
			footer:    []byte(`{"kid":"zVhMiPBP9fRf2snEcT7gFTioeA9COcNy9DfgL1W60haN"}`),
			assertion: []byte(`{"test-vector":"4-S-3"}`),
			want:      "v4.local.oKGio6SlpqeoqaqrrK2ur7CxsrO0tba3uLm6u7y9vr9X_nvnpaV98mfwAQA4ZCdk4_BR27XsFtFaN6g2-kkVjYAa23bWc8egZvcReLllAoNlFJ77FtKhgyJmVcPxRFHDa2blh97aOhMU7ODMfDNcpeXs2DzbChb-g8BXCOX88fMyA9U1ag.eyJraWQiOiJ6VmhNaVBCUDlmUmYyc25FY1Q3Z0ZUaW9lQTlDT2NOeTlEZmdMMVc2MGhhTiJ9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sealLocal(k, tt.nonce, message, tt.footer, tt.assertion))

			got, err := openLocal(k, tt.want, tt.assertion)
			require.NoError(t, err)
			assert.Equal(t, message, got)
		})
	}
}

func TestOpenLocal_WrongAssertion(t *testing.T) {
	k := seqKey(0x70)
	token := sealLocal(k, make([]byte, localNonceSize), []byte("msg"), nil, []byte("a"))

	_, err := openLocal(k, token, []byte("b"))
	assert.True(t, IsKind(err, KindDecryption), "got %v", err)
}
