package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var getDealSchema = MustObject(
	Integer("dealId", Required(), Minimum(1), Description("Deal identifier")),
)

var listSchema = MustObject(
	Integer("page", Default(1), Minimum(1)),
	Integer("show", Default(100), Minimum(1), Maximum(200)),
	String("status", Enum("open", "won", "lost")),
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		schema     *Schema
		raw        string
		wantErr    bool
		wantField  string
		wantReason string
		check      func(t *testing.T, p Params)
	}{
		{
			name:   "valid integer",
			schema: getDealSchema,
			raw:    `{"dealId": 42}`,
			check: func(t *testing.T, p Params) {
				id, ok := p.Int("dealId")
				assert.True(t, ok)
				assert.Equal(t, int64(42), id)
			},
		},
		{
			name:       "missing required",
			schema:     getDealSchema,
			raw:        `{}`,
			wantErr:    true,
			wantField:  "dealId",
			wantReason: "missing required property",
		},
		{
			name:      "null params treated as empty object",
			schema:    getDealSchema,
			raw:       `null`,
			wantErr:   true,
			wantField: "dealId",
		},
		{
			name:       "numeric string not coerced",
			schema:     getDealSchema,
			raw:        `{"dealId": "5"}`,
			wantErr:    true,
			wantField:  "dealId",
			wantReason: "expected integer, got string",
		},
		{
			name:      "fractional number rejected for integer",
			schema:    getDealSchema,
			raw:       `{"dealId": 1.5}`,
			wantErr:   true,
			wantField: "dealId",
		},
		{
			name:      "below minimum",
			schema:    getDealSchema,
			raw:       `{"dealId": 0}`,
			wantErr:   true,
			wantField: "dealId",
		},
		{
			name:       "array params rejected",
			schema:     getDealSchema,
			raw:        `[1, 2]`,
			wantErr:    true,
			wantField:  "params",
			wantReason: "expected object, got array",
		},
		{
			name:   "defaults applied for absent fields",
			schema: listSchema,
			raw:    ``,
			check: func(t *testing.T, p Params) {
				page, _ := p.Int("page")
				show, _ := p.Int("show")
				assert.Equal(t, int64(1), page)
				assert.Equal(t, int64(100), show)
				assert.False(t, p.Has("status"))
			},
		},
		{
			name:   "explicit values win over defaults",
			schema: listSchema,
			raw:    `{"page": 3}`,
			check: func(t *testing.T, p Params) {
				page, _ := p.Int("page")
				assert.Equal(t, int64(3), page)
			},
		},
		{
			name:      "enum violation",
			schema:    listSchema,
			raw:       `{"status": "pending"}`,
			wantErr:   true,
			wantField: "status",
		},
		{
			name:   "undeclared properties dropped",
			schema: listSchema,
			raw:    `{"page": 2, "extra": true}`,
			check: func(t *testing.T, p Params) {
				assert.False(t, p.Has("extra"))
				assert.True(t, p.Has("page"))
			},
		},
		{
			name:   "empty schema passes through",
			schema: Empty(),
			raw:    `{"anything": "goes"}`,
			check: func(t *testing.T, p Params) {
				v, _ := p.String("anything")
				assert.Equal(t, "goes", v)
			},
		},
		{
			name:   "nil schema accepts objects",
			schema: nil,
			raw:    `{"a": 1}`,
			check: func(t *testing.T, p Params) {
				assert.True(t, p.Has("a"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := Validate(tt.schema, json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "want *ValidationError, got %T", err)
				assert.Equal(t, tt.wantField, verr.Field)
				if tt.wantReason != "" {
					assert.Equal(t, tt.wantReason, verr.Reason)
				}
				assert.Contains(t, err.Error(), tt.wantField)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, params)
			}
		})
	}
}

func TestValidate_NestedRequired(t *testing.T) {
	s := MustObject(
		Integer("dealId", Required()),
		ObjectProperty("data", []Property{
			String("title", Required()),
			Number("value"),
		}, Required()),
	)

	_, err := s.Validate(json.RawMessage(`{"dealId": 1, "data": {"value": 10}}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "data.title", verr.Field)

	_, err = s.Validate(json.RawMessage(`{"dealId": 1, "data": {"title": 7}}`))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "data.title", verr.Field)

	p, err := s.Validate(json.RawMessage(`{"dealId": 1, "data": {"title": "Renewal", "value": 10.5}}`))
	require.NoError(t, err)
	data, ok := p["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Renewal", data["title"])
}

func TestValidate_DefaultsAreNotShared(t *testing.T) {
	s := MustObject(ObjectProperty("filter", nil, Default(map[string]any{"status": "open"})))

	first, err := s.Validate(nil)
	require.NoError(t, err)
	first["filter"].(map[string]any)["status"] = "mutated"

	second, err := s.Validate(nil)
	require.NoError(t, err)
	assert.Equal(t, "open", second["filter"].(map[string]any)["status"])
}

func TestNew_InvalidSchema(t *testing.T) {
	_, err := New([]byte(`{"type": 12}`))
	assert.Error(t, err)

	_, err = New([]byte(`not json`))
	assert.Error(t, err)
}

func TestSchema_Introspection(t *testing.T) {
	assert.Equal(t, []string{"dealId"}, getDealSchema.Required())
	assert.Equal(t, []string{"page", "show", "status"}, listSchema.PropertyNames())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(getDealSchema.JSON(), &doc))
	assert.Equal(t, "object", doc["type"])

	encoded, err := json.Marshal(getDealSchema)
	require.NoError(t, err)
	assert.JSONEq(t, string(getDealSchema.JSON()), string(encoded))
}

func TestParams_Accessors(t *testing.T) {
	p := Params{
		"n":    json.Number("12"),
		"f":    json.Number("1.5"),
		"s":    "text",
		"b":    true,
		"i":    7,
		"flt":  float64(3),
		"list": []any{1},
	}

	n, ok := p.Int("n")
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)

	_, ok = p.Int("f")
	assert.False(t, ok)

	i, ok := p.Int("i")
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)

	flt, ok := p.Int("flt")
	assert.True(t, ok)
	assert.Equal(t, int64(3), flt)

	s, ok := p.String("s")
	assert.True(t, ok)
	assert.Equal(t, "text", s)

	b, ok := p.Bool("b")
	assert.True(t, ok)
	assert.True(t, b)

	for key, want := range map[string]string{"n": "12", "f": "1.5", "s": "text", "b": "true", "i": "7", "flt": "3"} {
		got, ok := p.Text(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	_, ok = p.Text("list")
	assert.False(t, ok)
}

func TestParams_Decode(t *testing.T) {
	p, err := getDealSchema.Validate(json.RawMessage(`{"dealId": 9}`))
	require.NoError(t, err)

	var args struct {
		DealID int64 `json:"dealId"`
	}
	require.NoError(t, p.Decode(&args))
	assert.Equal(t, int64(9), args.DealID)
}

func TestValidate_Array(t *testing.T) {
	s := MustObject(Array("dealIds", Integer("", Minimum(1)), Required(), MinItems(1), MaxItems(3)))

	p, err := s.Validate(json.RawMessage(`{"dealIds": [4, 8]}`))
	require.NoError(t, err)
	var args struct {
		DealIDs []int64 `json:"dealIds"`
	}
	require.NoError(t, p.Decode(&args))
	assert.Equal(t, []int64{4, 8}, args.DealIDs)

	tests := []struct {
		name   string
		params string
		field  string
	}{
		{"element type", `{"dealIds": [1, "two"]}`, "dealIds.1"},
		{"element minimum", `{"dealIds": [0]}`, "dealIds.0"},
		{"empty", `{"dealIds": []}`, "dealIds"},
		{"too many", `{"dealIds": [1, 2, 3, 4]}`, "dealIds"},
		{"not an array", `{"dealIds": 1}`, "dealIds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Validate(json.RawMessage(tt.params))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidate_CanonicalIntegers(t *testing.T) {
	s := MustObject(
		Integer("dealId"),
		Number("value"),
		Array("dealIds", Integer("")),
		ObjectProperty("owner", []Property{Integer("userId")}),
	)

	p, err := s.Validate(json.RawMessage(`{"dealId":5.0,"value":2.50,"dealIds":[1e2,7.0],"owner":{"userId":3e0}}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("5"), p["dealId"])
	assert.Equal(t, json.Number("2.50"), p["value"], "numbers are left as written")
	assert.Equal(t, []any{json.Number("100"), json.Number("7")}, p["dealIds"])
	assert.Equal(t, map[string]any{"userId": json.Number("3")}, p["owner"])

	tests := []struct {
		name   string
		params string
		field  string
	}{
		{"exponent", `{"dealId":1e20}`, "dealId"},
		{"digits", `{"dealId":-9223372036854775809}`, "dealId"},
		{"array element", `{"dealIds":[1,1e19]}`, "dealIds.1"},
		{"nested", `{"owner":{"userId":1e30}}`, "owner.userId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Validate(json.RawMessage(tt.params))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, "integer out of range", verr.Reason)
		})
	}
}
