package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCPF(t *testing.T) {
	assert.NoError(t, ValidateCPF("529.982.247-25"))
	assert.Equal(t, ErrCPFLength, ValidateCPF("123"))
	assert.Equal(t, ErrCPFRepeated, ValidateCPF("111.111.111-11"))
	assert.Equal(t, ErrCPFCheckDigits, ValidateCPF("529.982.247-26"))
}

func TestEmailAndPhone(t *testing.T) {
	assert.True(t, IsValidEmail("ana@clinica.com.br"))
	assert.False(t, IsValidEmail("ana@clinica"))
	assert.False(t, IsValidEmail("ana clinica@x.com"))

	assert.True(t, PhoneDigitsBetween("(11) 99999-0000", 10, 11))
	assert.False(t, PhoneDigitsBetween("9999-0000", 10, 11))
}

func TestFormatTypebotPhone(t *testing.T) {
	assert.Equal(t, "(11) 99999-0000", FormatTypebotPhone("5511999990000"))
	assert.Equal(t, "(11) 98888-7777", FormatTypebotPhone("1188887777"))
	assert.Equal(t, "(11) 123", FormatTypebotPhone("11123"))
	assert.Equal(t, "1", FormatTypebotPhone("1"))
}

func TestMapTypebotInterest(t *testing.T) {
	assert.Equal(t, InterestFacial, MapTypebotInterest("Harmonização"))
	assert.Equal(t, InterestCorporal, MapTypebotInterest("estética corporal"))
	assert.Equal(t, InterestBio, MapTypebotInterest("Bioestimulador de colágeno"))
	assert.Equal(t, InterestOthers, MapTypebotInterest(""))
	assert.Equal(t, InterestOthers, MapTypebotInterest("botox"))
}

func TestValidateFieldValue(t *testing.T) {
	tests := []struct {
		name    string
		def     FieldDefinition
		value   interface{}
		wantErr string
	}{
		{"required empty", FieldDefinition{Name: "CRM", Type: FieldText, Required: true}, "", "Field CRM is required"},
		{"optional empty", FieldDefinition{Name: "CRM", Type: FieldNumber}, nil, ""},
		{"required empty list", FieldDefinition{Name: "Tags", Type: FieldMultiselect, Required: true}, []interface{}{}, "Field Tags is required"},
		{"number ok", FieldDefinition{Name: "Idade", Type: FieldNumber}, float64(30), ""},
		{"number bad", FieldDefinition{Name: "Idade", Type: FieldNumber}, "30", "Invalid type for Idade, expected number"},
		{"boolean bad", FieldDefinition{Name: "Ativo", Type: FieldBoolean}, "sim", "Invalid type for Ativo, expected boolean"},
		{"date string", FieldDefinition{Name: "Início", Type: FieldDate}, "2024-03-01", ""},
		{"date epoch", FieldDefinition{Name: "Início", Type: FieldDate}, float64(1709251200000), ""},
		{"date bad", FieldDefinition{Name: "Início", Type: FieldDate}, "amanhã", "Invalid date format for Início"},
		{"select bad", FieldDefinition{Name: "Plano", Type: FieldSelect, Options: []string{"a", "b"}}, "c", "Invalid option for Plano"},
		{"multiselect not list", FieldDefinition{Name: "Áreas", Type: FieldMultiselect, Options: []string{"a"}}, "a", "Expected array for multiselect Áreas"},
		{"multiselect bad item", FieldDefinition{Name: "Áreas", Type: FieldMultiselect, Options: []string{"a"}}, []interface{}{"a", "z"}, "Invalid option 'z' for Áreas"},
		{"multiselect ok", FieldDefinition{Name: "Áreas", Type: FieldMultiselect, Options: []string{"a", "b"}}, []interface{}{"a", "b"}, ""},
		{"text bad", FieldDefinition{Name: "Obs", Type: FieldText}, float64(1), "Expected string for Obs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldValue(tt.def, tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestRegistryBuiltins(t *testing.T) {
	assert.NoError(t, Validate("email", "", nil))
	assert.Error(t, Validate("email", "x", nil))
	assert.Error(t, Validate("phone", "123", map[string]interface{}{"min": 10, "max": 15}))
	assert.NoError(t, Validate("cpf", "52998224725", nil))
	assert.Error(t, Validate("length", "a", map[string]interface{}{"min": 2}))
	assert.Error(t, Validate("unknown", "a", nil))
}
