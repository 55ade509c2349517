package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AllEmbeddedSchemasCompile(t *testing.T) {
	names := []string{
		"interview_questions",
		"outline_skeleton",
		"session_detail",
		"research",
		"validation",
		"edit",
		"gap_fill",
		"video_queries",
		"video_rerank",
		"video_suggestions",
	}
	for _, name := range names {
		s, err := Load(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Name())
	}
}

func TestLoad_MissingSchema(t *testing.T) {
	_, err := Load("no_such_schema")
	assert.Error(t, err)
}

func TestValidate_AcceptsConformingDocument(t *testing.T) {
	s := MustLoad("research")
	doc := []byte(`{"content":"# Intro\nSome text","key_concepts":["a"],"resources":[],"exercises":[]}`)
	assert.NoError(t, s.Validate(doc))
}

func TestValidate_RejectsMissingRequiredField(t *testing.T) {
	s := MustLoad("research")
	err := s.Validate([]byte(`{"key_concepts":["a"]}`))
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "research", ve.Schema)
	assert.NotEmpty(t, ve.Errors)
}

func TestValidate_RejectsWrongType(t *testing.T) {
	s := MustLoad("validation")
	err := s.Validate([]byte(`{"is_valid":"yes","overall_score":88,"summary":"ok"}`))
	assert.Error(t, err)
}
