package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterMemberValidate(t *testing.T) {
	cases := []struct {
		name      string
		challenge string
		concept   string
		dialectic string
		wantErr   bool
	}{
		{"challenge only", "ch-1", "", "", false},
		{"emerging concept only", "", "ec-1", "", false},
		{"emerging dialectic only", "", "", "ed-1", false},
		{"no reference", "", "", "", true},
		{"two references", "ch-1", "ec-1", "", true},
		{"all three", "ch-1", "ec-1", "ed-1", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewClusterMember("m-1", "cl-1", tc.challenge, tc.concept, tc.dialectic, 0.8)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrAmbiguousMember)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, m)
		})
	}
}

func TestClusterMemberSimilarityRange(t *testing.T) {
	_, err := NewClusterMember("m-1", "cl-1", "ch-1", "", "", 1.2)
	assert.Error(t, err)

	_, err = NewClusterMember("m-1", "cl-1", "ch-1", "", "", -0.1)
	assert.Error(t, err)

	_, err = NewClusterMember("m-1", "cl-1", "ch-1", "", "", 0)
	assert.NoError(t, err)
}
