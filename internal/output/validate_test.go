package output

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleItem struct {
	Title string `json:"title" validate:"required,min=3,max=20"`
}

type sampleSchema struct {
	Score int          `json:"score" validate:"gte=1,lte=5"`
	Tone  string       `json:"tone" validate:"required,oneof=calm loud"`
	Items []sampleItem `json:"items" validate:"min=1,max=2,dive"`
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	got, err := Validate[sampleSchema]([]byte(`{"score":3,"tone":"calm","items":[{"title":"first"}],"extra":true}`), "Sample")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Score)
	assert.Equal(t, "first", got.Items[0].Title)
}

func TestValidate_FieldErrors(t *testing.T) {
	t.Parallel()

	raw := `{"score":9,"tone":"angry","items":[{"title":"ok!"},{"title":"no"},{"title":"third"}]}`
	_, err := Validate[sampleSchema]([]byte(raw), "Sample")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "Sample", ve.SchemaName)
	assert.Equal(t, raw, ve.RawOutput)

	paths := map[string]string{}
	for _, fe := range ve.FieldErrors {
		paths[fe.Path] = fe.Code
	}
	assert.Equal(t, "lte", paths["score"])
	assert.Equal(t, "oneof", paths["tone"])
	assert.Equal(t, "max", paths["items"])
	assert.Contains(t, ve.Error(), "AI output validation failed for Sample")
}

func TestValidate_DecodeFailure(t *testing.T) {
	t.Parallel()

	_, err := Validate[sampleSchema]([]byte(`{"score":"high"}`), "Sample")
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	require.Len(t, ve.FieldErrors, 1)
	assert.Equal(t, "invalid_type", ve.FieldErrors[0].Code)
	assert.Equal(t, "score", ve.FieldErrors[0].Path)

	_, err = Validate[sampleSchema]([]byte(`not json`), "Sample")
	ve, ok = AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid_json", ve.FieldErrors[0].Code)
}

func TestValidate_TrailingData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "trailing whitespace", raw: "{\"score\":3,\"tone\":\"calm\",\"items\":[{\"title\":\"first\"}]}\n  "},
		{name: "second document", raw: `{"score":3,"tone":"calm","items":[{"title":"first"}]}{"score":1}`, wantErr: true},
		{name: "trailing prose", raw: `{"score":3,"tone":"calm","items":[{"title":"first"}]} hope this helps`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Validate[sampleSchema]([]byte(tt.raw), "Sample")
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			ve, ok := AsValidationError(err)
			require.True(t, ok)
			require.Len(t, ve.FieldErrors, 1)
			assert.Equal(t, "invalid_json", ve.FieldErrors[0].Code)
			assert.Equal(t, tt.raw, ve.RawOutput)
		})
	}
}
