package schema_test

import (
	"testing"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/schema"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *types.Value {
	v := types.BoolValue(b)
	return &v
}

func strPtr(s string) *types.Value {
	v := types.StringValue(s)
	return &v
}

func TestNew_Validation(t *testing.T) {
	t.Run("duplicate_name", func(t *testing.T) {
		_, err := schema.New([]schema.Option{
			{Name: "bench", Kind: schema.KindBool, Default: boolPtr(true)},
			{Name: "bench", Kind: schema.KindBool, Default: boolPtr(false)},
		})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSchemaDuplicate))
	})

	t.Run("enum_without_choices", func(t *testing.T) {
		_, err := schema.New([]schema.Option{
			{Name: "license", Kind: schema.KindEnum},
		})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrManifestInvalid))
	})

	t.Run("enum_default_outside_choices", func(t *testing.T) {
		_, err := schema.New([]schema.Option{
			{Name: "license", Kind: schema.KindEnum, Choices: []string{"MIT", "Apache 2.0"}, Default: strPtr("GPL")},
		})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrManifestInvalid))
	})

	t.Run("malformed_activation_condition", func(t *testing.T) {
		_, err := schema.New([]schema.Option{
			{Name: "a", Kind: schema.KindBool, Default: boolPtr(true)},
			{Name: "b", Kind: schema.KindBool, Default: boolPtr(true), When: "(a == true"},
		})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrRuleMalformedExpr))
	})

	t.Run("invalid_pattern", func(t *testing.T) {
		_, err := schema.New([]schema.Option{
			{Name: "project-name", Kind: schema.KindString, Pattern: "["},
		})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrManifestInvalid))
	})
}

func TestNew_CyclicDependency(t *testing.T) {
	t.Run("two_option_cycle", func(t *testing.T) {
		_, err := schema.New([]schema.Option{
			{Name: "a", Kind: schema.KindBool, Default: boolPtr(true), When: "b == true"},
			{Name: "b", Kind: schema.KindBool, Default: boolPtr(true), When: "a == true"},
		})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSchemaCyclicDep))
	})

	t.Run("self_reference", func(t *testing.T) {
		_, err := schema.New([]schema.Option{
			{Name: "a", Kind: schema.KindBool, Default: boolPtr(true), When: "a == true"},
		})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSchemaCyclicDep))
	})
}

func TestResolutionOrder_DependenciesFirst(t *testing.T) {
	s, err := schema.New([]schema.Option{
		{Name: "build_csharp_libs", Kind: schema.KindBool, Default: boolPtr(false), When: "build_c_libs == true"},
		{Name: "build_c_libs", Kind: schema.KindBool, Default: boolPtr(true)},
	})
	require.NoError(t, err)

	order := s.ResolutionOrder()
	require.Len(t, order, 2)
	assert.Equal(t, "build_c_libs", order[0])
	assert.Equal(t, "build_csharp_libs", order[1])
}

func TestResolve_Defaults(t *testing.T) {
	s, err := schema.New([]schema.Option{
		{Name: "bench", Kind: schema.KindBool, Default: boolPtr(true)},
		{Name: "license", Kind: schema.KindEnum, Choices: []string{"MIT", "Apache 2.0"}, Default: strPtr("MIT")},
	})
	require.NoError(t, err)

	values, err := s.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, types.BoolValue(true), values["bench"])
	assert.Equal(t, types.StringValue("MIT"), values["license"])
}

func TestResolve_Overrides(t *testing.T) {
	s, err := schema.New([]schema.Option{
		{Name: "bench", Kind: schema.KindBool, Default: boolPtr(true)},
		{Name: "project-name", Kind: schema.KindString, Pattern: `^[a-z][a-z0-9-]*$`},
	})
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		values, err := s.Resolve(map[string]string{
			"bench":        "false",
			"project-name": "my-lib",
		})
		require.NoError(t, err)
		assert.Equal(t, types.BoolValue(false), values["bench"])
		assert.Equal(t, types.StringValue("my-lib"), values["project-name"])
	})

	t.Run("bad_bool", func(t *testing.T) {
		_, err := s.Resolve(map[string]string{"bench": "yes", "project-name": "x"})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSchemaInvalidValue))
	})

	t.Run("pattern_mismatch", func(t *testing.T) {
		_, err := s.Resolve(map[string]string{"project-name": "My Lib"})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSchemaInvalidValue))
		assert.Equal(t, "project-name", errors.GetErrorDetails(err)["option"])
	})

	t.Run("unknown_option", func(t *testing.T) {
		_, err := s.Resolve(map[string]string{"projcet-name": "typo", "project-name": "x"})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSchemaUnknownOption))
	})
}

func TestResolve_MissingRequired(t *testing.T) {
	s, err := schema.New([]schema.Option{
		{Name: "project-name", Kind: schema.KindString},
	})
	require.NoError(t, err)

	_, err = s.Resolve(nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSchemaMissingRequired))
	assert.Equal(t, "project-name", errors.GetErrorDetails(err)["option"])
}

func TestResolve_EnumMembership(t *testing.T) {
	s, err := schema.New([]schema.Option{
		{Name: "license", Kind: schema.KindEnum, Choices: []string{"MIT", "Apache 2.0", "GPL v3"}, Default: strPtr("MIT")},
	})
	require.NoError(t, err)

	values, err := s.Resolve(map[string]string{"license": "Apache 2.0"})
	require.NoError(t, err)
	assert.Equal(t, "Apache 2.0", values["license"].Str())

	_, err = s.Resolve(map[string]string{"license": "WTFPL"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSchemaInvalidValue))
}

// A gated option is omitted from the resolved configuration when its
// activation condition is false, even when the caller supplies an
// override for it.
func TestResolve_InactiveOptionOmitted(t *testing.T) {
	s, err := schema.New([]schema.Option{
		{Name: "build_c_libs", Kind: schema.KindBool, Default: boolPtr(true)},
		{Name: "build_csharp_libs", Kind: schema.KindBool, Default: boolPtr(false), When: "build_c_libs == true"},
	})
	require.NoError(t, err)

	t.Run("active_when_gate_true", func(t *testing.T) {
		values, err := s.Resolve(map[string]string{"build_csharp_libs": "true"})
		require.NoError(t, err)
		assert.Equal(t, types.BoolValue(true), values["build_csharp_libs"])
	})

	t.Run("omitted_when_gate_false", func(t *testing.T) {
		values, err := s.Resolve(map[string]string{
			"build_c_libs":      "false",
			"build_csharp_libs": "true",
		})
		require.NoError(t, err)
		_, present := values.Lookup("build_csharp_libs")
		assert.False(t, present, "inactive option must be absent from the resolved configuration")
	})
}

// Total resolution: the result contains exactly the options whose
// activation conditions evaluate true under it.
func TestResolve_TotalResolution(t *testing.T) {
	s, err := schema.New([]schema.Option{
		{Name: "mkdocs", Kind: schema.KindBool, Default: boolPtr(true)},
		{Name: "vscode", Kind: schema.KindBool, Default: boolPtr(true)},
		{Name: "doc_vscode", Kind: schema.KindBool, Default: boolPtr(false), When: "mkdocs == true && vscode == true"},
	})
	require.NoError(t, err)

	values, err := s.Resolve(map[string]string{"vscode": "false"})
	require.NoError(t, err)

	assert.Len(t, values, 2)
	for _, opt := range s.Options() {
		v, present := values.Lookup(opt.Name)
		cond := opt.Condition()
		if cond == nil || cond.Eval(values) {
			assert.True(t, present, "active option %q missing", opt.Name)
			_ = v
		} else {
			assert.False(t, present, "inactive option %q present", opt.Name)
		}
	}
}

type fixedPrompter struct {
	answers map[string]types.Value
	asked   []string
}

func (p *fixedPrompter) Prompt(opt schema.Option) (types.Value, error) {
	p.asked = append(p.asked, opt.Name)
	return p.answers[opt.Name], nil
}

func TestResolveWith_Prompter(t *testing.T) {
	s, err := schema.New([]schema.Option{
		{Name: "wine", Kind: schema.KindBool, Default: boolPtr(false)},
		{Name: "project-name", Kind: schema.KindString},
	})
	require.NoError(t, err)

	t.Run("prompts_unset_options", func(t *testing.T) {
		p := &fixedPrompter{answers: map[string]types.Value{
			"wine":         types.BoolValue(true),
			"project-name": types.StringValue("prompted"),
		}}
		values, err := s.ResolveWith(nil, p)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"wine", "project-name"}, p.asked)
		assert.Equal(t, types.BoolValue(true), values["wine"])
		assert.Equal(t, "prompted", values["project-name"].Str())
	})

	t.Run("overrides_suppress_prompt", func(t *testing.T) {
		p := &fixedPrompter{answers: map[string]types.Value{
			"project-name": types.StringValue("prompted"),
		}}
		values, err := s.ResolveWith(map[string]string{"wine": "true"}, p)
		require.NoError(t, err)
		assert.Equal(t, []string{"project-name"}, p.asked)
		assert.Equal(t, types.BoolValue(true), values["wine"])
	})

	t.Run("prompter_answer_validated", func(t *testing.T) {
		p := &fixedPrompter{answers: map[string]types.Value{
			"wine":         types.StringValue("not-a-bool"),
			"project-name": types.StringValue("x"),
		}}
		_, err := s.ResolveWith(nil, p)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSchemaInvalidValue))
	})
}

func TestResolve_Deterministic(t *testing.T) {
	s, err := schema.New([]schema.Option{
		{Name: "xplat", Kind: schema.KindBool, Default: boolPtr(true)},
		{Name: "bench", Kind: schema.KindBool, Default: boolPtr(true), When: "xplat == true"},
		{Name: "miri", Kind: schema.KindBool, Default: boolPtr(false), When: "xplat == true && bench == true"},
	})
	require.NoError(t, err)

	a, err := s.Resolve(nil)
	require.NoError(t, err)
	b, err := s.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
