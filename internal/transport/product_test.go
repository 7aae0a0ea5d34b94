package transport

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validValues() url.Values {
	return url.Values{
		"name":        {" lamp "},
		"description": {"desk lamp"},
		"price":       {"12.50"},
		"quantity":    {"3"},
	}
}

func requireValidation(t *testing.T, err error) *ValidationError {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %v", err)
	return ve
}

func TestParseCreate_OK(t *testing.T) {
	in, err := ParseCreate(CreateFromValues(validValues()), true)
	require.NoError(t, err)
	assert.Equal(t, "lamp", in.Name)
	assert.Equal(t, 12.5, in.Price)
	assert.Equal(t, 3, in.Quantity)

	p := in.Product("/uploads/1-1.png")
	assert.Equal(t, "/uploads/1-1.png", p.Image)
	assert.Empty(t, p.ID)
}

func TestParseCreate_ZeroPriceAllowed(t *testing.T) {
	vals := validValues()
	vals.Set("price", "0")
	vals.Set("quantity", "0")
	_, err := ParseCreate(CreateFromValues(vals), true)
	require.NoError(t, err)
}

func TestParseCreate_Missing(t *testing.T) {
	for _, field := range []string{"name", "description", "price", "quantity"} {
		t.Run(field, func(t *testing.T) {
			vals := validValues()
			vals.Set(field, "   ")
			_, err := ParseCreate(CreateFromValues(vals), true)
			ve := requireValidation(t, err)
			assert.Equal(t, MissingFieldsMessage, ve.Message())
			assert.Equal(t, field, ve.Fields[0].Field)
			assert.Equal(t, ReasonMissing, ve.Fields[0].Reason)
		})
	}

	t.Run("image", func(t *testing.T) {
		_, err := ParseCreate(CreateFromValues(validValues()), false)
		ve := requireValidation(t, err)
		assert.Equal(t, MissingFieldsMessage, ve.Message())
		assert.Equal(t, FieldImage, ve.Fields[0].Field)
	})
}

func TestParseCreate_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		reason  Reason
		message string
	}{
		{name: "price text", field: "price", value: "cheap", reason: ReasonNotANumber, message: "price must be a number"},
		{name: "quantity fraction", field: "quantity", value: "1.5", reason: ReasonNotANumber, message: "quantity must be a number"},
		{name: "negative price", field: "price", value: "-1", reason: ReasonNegative, message: "price must not be negative"},
		{name: "negative quantity", field: "quantity", value: "-2", reason: ReasonNegative, message: "quantity must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals := validValues()
			vals.Set(tt.field, tt.value)
			_, err := ParseCreate(CreateFromValues(vals), true)
			ve := requireValidation(t, err)
			assert.Equal(t, tt.reason, ve.Fields[0].Reason)
			assert.Equal(t, tt.message, ve.Message())
		})
	}
}

func TestParseUpdate_FromValues(t *testing.T) {
	patch, err := ParseUpdate(UpdateFromValues(url.Values{"price": {"99.9"}}))
	require.NoError(t, err)
	require.NotNil(t, patch.Price)
	assert.Equal(t, 99.9, *patch.Price)
	assert.Nil(t, patch.Name)
	assert.Nil(t, patch.Quantity)
	assert.Nil(t, patch.Image)

	_, err = ParseUpdate(UpdateFromValues(url.Values{"name": {""}}))
	ve := requireValidation(t, err)
	assert.Equal(t, "name must not be empty", ve.Message())

	_, err = ParseUpdate(UpdateFromValues(url.Values{"quantity": {"-1"}}))
	ve = requireValidation(t, err)
	assert.Equal(t, ReasonNegative, ve.Fields[0].Reason)
}

func TestDecodeUpdateJSON(t *testing.T) {
	req, err := DecodeUpdateJSON(strings.NewReader(`{"_id":"abc","price":"15","quantity":7,"image":"/uploads/x.png"}`))
	require.NoError(t, err)
	patch, err := ParseUpdate(req)
	require.NoError(t, err)
	assert.Equal(t, 15.0, *patch.Price)
	assert.Equal(t, 7, *patch.Quantity)
	assert.Nil(t, patch.Image)

	req, err = DecodeUpdateJSON(strings.NewReader(`{"price":true}`))
	require.NoError(t, err)
	_, err = ParseUpdate(req)
	ve := requireValidation(t, err)
	assert.Equal(t, ReasonNotANumber, ve.Fields[0].Reason)

	req, err = DecodeUpdateJSON(strings.NewReader(``))
	require.NoError(t, err)
	patch, err = ParseUpdate(req)
	require.NoError(t, err)
	assert.True(t, patch.Empty())

	_, err = DecodeUpdateJSON(strings.NewReader(`{"price":`))
	require.Error(t, err)
}

func TestDecodeUpdateJSON_ExponentNumbers(t *testing.T) {
	req, err := DecodeUpdateJSON(strings.NewReader(`{"price":1e2,"quantity":2e0}`))
	require.NoError(t, err)
	patch, err := ParseUpdate(req)
	require.NoError(t, err)
	assert.Equal(t, 100.0, *patch.Price)
	assert.Equal(t, 2, *patch.Quantity)

	req, err = DecodeUpdateJSON(strings.NewReader(`{"quantity":2.5}`))
	require.NoError(t, err)
	_, err = ParseUpdate(req)
	requireValidation(t, err)
}
