package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/utils"
	"github.com/gpus/backend/pkg/validator"
)

// Portability export formats
const (
	ExportJSON = "json"
	ExportCSV  = "csv"
	ExportPDF  = "pdf"
)

const (
	deletedMarker  = "[DELETED]"
	redactedMarker = "[REDACTED]"
)

// DataSubjectRights lists the rights reported on access requests
var DataSubjectRights = []string{
	string(models.RequestAccess),
	string(models.RequestCorrection),
	string(models.RequestDeletion),
	string(models.RequestPortability),
	string(models.RequestInformation),
	string(models.RequestObjection),
	string(models.RequestRestriction),
}

var standardResponses = map[models.LGPDRequestType]string{
	models.RequestInformation: "Seus dados são tratados para fins acadêmicos, financeiros e de comunicação, " +
		"com base na execução de contrato e no consentimento. Você pode solicitar acesso, correção, " +
		"exclusão ou portabilidade a qualquer momento.",
	models.RequestObjection:   "Sua oposição ao tratamento foi registrada e será analisada pela equipe de privacidade.",
	models.RequestRestriction: "O tratamento dos seus dados para fins acadêmicos foi restringido.",
}

func (s *LGPDService) processAccess(ctx context.Context, identity auth.Identity, req *models.LGPDRequest, student *models.Student) error {
	consents, err := s.lgpd.ListConsentsByStudent(ctx, req.OrganizationID, student.ID)
	if err != nil {
		return err
	}
	history, err := s.lgpd.ListAudit(ctx, models.AuditFilter{
		OrganizationID: req.OrganizationID,
		StudentID:      student.ID,
		Limit:          100,
	})
	if err != nil {
		return err
	}

	auditHistory := make([]map[string]interface{}, 0, len(history))
	for _, entry := range history {
		auditHistory = append(auditHistory, map[string]interface{}{
			"action": string(entry.ActionType),
			"date":   entry.CreatedAt.Format(time.RFC3339),
			"actor":  entry.ActorID,
		})
	}
	report := map[string]interface{}{
		"personalData": s.personalData(student),
		"consents":     consentSummaries(consents),
		"auditHistory": auditHistory,
		"rights":       DataSubjectRights,
		"metadata": map[string]interface{}{
			"generatedAt": nowFunc().Format(time.RFC3339),
			"version":     "1.0",
			"requestId":   req.ID,
		},
	}

	if err := s.complete(ctx, req, "Relatório de acesso gerado", report, "Solicitação de acesso atendida"); err != nil {
		return err
	}
	recordAudit(ctx, s, identity, AuditInput{
		StudentID:    &student.ID,
		ActionType:   models.AuditDataAccess,
		DataCategory: models.CategoryIdentificacao,
		Description:  "Solicitação de acesso atendida",
		LegalBasis:   LegalBasisDataSubject,
		Metadata: map[string]interface{}{
			"requestId":    req.ID,
			"consentCount": len(consents),
			"auditEntries": len(history),
		},
	})
	return nil
}

// personalData is the decrypted view of a student handed to its owner
func (s *LGPDService) personalData(student *models.Student) map[string]interface{} {
	data := map[string]interface{}{
		"name":           student.Name,
		"email":          student.Email,
		"phone":          student.Phone,
		"profession":     student.Profession,
		"professionalId": student.ProfessionalID,
		"hasClinic":      student.HasClinic,
		"clinicName":     student.ClinicName,
		"clinicCity":     student.ClinicCity,
		"status":         string(student.Status),
		"products":       student.Products,
		"lgpdConsent":    student.LGPDConsent,
		"createdAt":      student.CreatedAt.Format(time.RFC3339),
	}
	if student.CPF != nil && *student.CPF != "" && *student.CPF != deletedMarker && s.cipher != nil {
		cpf, err := s.cipher.DecryptCPF(*student.CPF)
		if err != nil {
			log.Printf("⚠️ Failed to decrypt CPF of student %s: %v", student.ID, err)
		} else {
			data["cpf"] = cpf
		}
	}
	return data
}

func consentSummaries(consents []models.Consent) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(consents))
	for _, c := range consents {
		out = append(out, map[string]interface{}{
			"type":        c.ConsentType,
			"version":     c.Version,
			"granted":     c.Granted,
			"grantedAt":   c.GrantedAt,
			"withdrawn":   c.Withdrawn,
			"withdrawnAt": c.WithdrawnAt,
		})
	}
	return out
}

// CorrectionError explains why a corrected value is refused, or "" when it is accepted
func CorrectionError(field, value string) string {
	length := len([]rune(strings.TrimSpace(value)))
	switch field {
	case "name":
		if length < 2 || length > 100 {
			return "Nome deve ter entre 2 e 100 caracteres"
		}
	case "email":
		if !validator.IsValidEmail(value) {
			return "Email inválido"
		}
	case "phone":
		if !validator.PhoneDigitsBetween(value, 10, 15) {
			return "Telefone deve ter entre 10 e 15 dígitos"
		}
	case "profession":
		if length < 2 || length > 50 {
			return "Profissão deve ter entre 2 e 50 caracteres"
		}
	case "clinicName":
		if length != 0 && (length < 2 || length > 100) {
			return "Nome da clínica deve ter entre 2 e 100 caracteres"
		}
	case "clinicCity":
		if length != 0 && (length < 2 || length > 50) {
			return "Cidade da clínica deve ter entre 2 e 50 caracteres"
		}
	default:
		return fmt.Sprintf("Campo não permitido: %s", field)
	}
	return ""
}

// StudentDataCategory maps a student attribute to its LGPD data category
func StudentDataCategory(field string) string {
	switch field {
	case "name", "cpf":
		return models.CategoryIdentificacao
	case "email", "phone":
		return models.CategoryContato
	case "profession", "professionalId", "clinicName", "clinicCity":
		return models.CategoryProfissional
	}
	return models.CategoryOutros
}

func sensitiveCategory(category string) bool {
	return category == models.CategoryIdentificacao || category == models.CategoryContato
}

func (s *LGPDService) processCorrection(ctx context.Context, identity auth.Identity, req *models.LGPDRequest, student *models.Student) error {
	fields := correctionFields(req.Details)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []string
	for _, name := range names {
		if msg := CorrectionError(name, fields[name]); msg != "" {
			problems = append(problems, msg)
		}
	}
	if len(problems) > 0 {
		return s.reject(ctx, req, strings.Join(problems, "; "))
	}

	return withinTx(ctx, s.tx, func(ctx context.Context) error {
		changes := make([]map[string]interface{}, 0, len(names))
		for _, name := range names {
			oldValue, err := s.applyCorrection(student, name, strings.TrimSpace(fields[name]))
			if err != nil {
				return err
			}
			category := StudentDataCategory(name)
			oldShown, newShown := oldValue, strings.TrimSpace(fields[name])
			if sensitiveCategory(category) {
				oldShown, newShown = redactedMarker, redactedMarker
			}
			changes = append(changes, map[string]interface{}{"field": name})
			if _, err := s.LogAudit(ctx, identity, AuditInput{
				StudentID:    &student.ID,
				ActionType:   models.AuditDataModification,
				DataCategory: category,
				Description:  fmt.Sprintf("Campo %s corrigido via solicitação LGPD", name),
				LegalBasis:   LegalBasisDataSubject,
				Metadata: map[string]interface{}{
					"requestId": req.ID,
					"field":     name,
					"oldValue":  oldShown,
					"newValue":  newShown,
				},
			}); err != nil {
				return err
			}
		}
		student.UpdatedAt = nowFunc()
		if err := s.students.Update(ctx, student); err != nil {
			return err
		}
		data := map[string]interface{}{"corrections": changes}
		return s.complete(ctx, req, fmt.Sprintf("%d campo(s) corrigido(s)", len(names)), data,
			fmt.Sprintf("Aplicadas %d correções", len(names)))
	})
}

// applyCorrection sets one attribute and returns its previous value
func (s *LGPDService) applyCorrection(student *models.Student, field, value string) (string, error) {
	var old string
	switch field {
	case "name":
		old, student.Name = student.Name, value
	case "email":
		old, student.Email = student.Email, strings.ToLower(value)
		enc, err := s.encryptOptional(student.Email)
		if err != nil {
			return "", err
		}
		student.EncryptedEmail = enc
	case "phone":
		old, student.Phone = student.Phone, utils.OnlyDigits(value)
		enc, err := s.encryptOptional(student.Phone)
		if err != nil {
			return "", err
		}
		student.EncryptedPhone = enc
	case "profession":
		old, student.Profession = student.Profession, value
	case "clinicName":
		old, student.ClinicName = utils.Deref(student.ClinicName), utils.NonEmptyPtr(value)
	case "clinicCity":
		old, student.ClinicCity = utils.Deref(student.ClinicCity), utils.NonEmptyPtr(value)
	}
	return old, nil
}

func (s *LGPDService) encryptOptional(value string) (*string, error) {
	if value == "" || s.cipher == nil {
		return nil, nil
	}
	enc, err := s.cipher.Encrypt(value)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

// AnonymizeStudent replaces the personal data of a student with markers
func AnonymizeStudent(student *models.Student, now time.Time) {
	prefix := student.ID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	deleted := deletedMarker
	student.Name = fmt.Sprintf("[DELETED-%s]", prefix)
	student.Email = fmt.Sprintf("deleted-%d@deleted.local", now.Unix())
	student.Phone = deletedMarker
	student.CPF = &deleted
	student.CPFHash = nil
	student.EncryptedEmail = &deleted
	student.EncryptedPhone = &deleted
	student.ClinicName = nil
	student.ClinicCity = nil
	student.ProfessionalID = nil
	student.UpdatedAt = now
}

func (s *LGPDService) processDeletion(ctx context.Context, identity auth.Identity, req *models.LGPDRequest, student *models.Student) error {
	reason := detailString(req.Details, "reason")
	includePii := detailBool(req.Details, "includePii", true)
	includeAcademic := detailBool(req.Details, "includeAcademic", false)

	return withinTx(ctx, s.tx, func(ctx context.Context) error {
		now := nowFunc()
		var steps []map[string]interface{}

		if includePii {
			AnonymizeStudent(student, now)
			if err := s.students.Update(ctx, student); err != nil {
				return err
			}
			steps = append(steps, map[string]interface{}{"category": "pii", "action": "anonymized"})
		}
		if includeAcademic {
			cancelled, err := s.enrollments.CancelByStudent(ctx, student.ID)
			if err != nil {
				return err
			}
			steps = append(steps, map[string]interface{}{"category": "academic", "action": "cancelled", "count": cancelled})
		}
		removed, err := s.conversations.DeleteByStudent(ctx, student.ID)
		if err != nil {
			return err
		}
		steps = append(steps, map[string]interface{}{"category": "communications", "action": "deleted", "count": removed})

		withdrawn, err := s.lgpd.WithdrawConsentsByStudent(ctx, student.ID, "Exclusão de dados solicitada pelo titular", now)
		if err != nil {
			return err
		}
		steps = append(steps, map[string]interface{}{"category": "consents", "action": "withdrawn", "count": withdrawn})

		if _, err := s.LogAudit(ctx, identity, AuditInput{
			StudentID:    &student.ID,
			ActionType:   models.AuditDataDeletion,
			DataCategory: models.CategoryIdentificacao,
			Description:  fmt.Sprintf("Exclusão de dados processada: %s", reason),
			LegalBasis:   LegalBasisDataSubject,
			Metadata: map[string]interface{}{
				"requestId":     req.ID,
				"reason":        reason,
				"steps":         steps,
				"dataDeletedAt": now.Format(time.RFC3339),
			},
		}); err != nil {
			return err
		}

		data := map[string]interface{}{"deletionSteps": steps, "dataDeletedAt": now.Format(time.RFC3339)}
		return s.complete(ctx, req, "Dados excluídos conforme solicitado", data,
			fmt.Sprintf("Exclusão concluída em %d etapas", len(steps)))
	})
}

func (s *LGPDService) processPortability(ctx context.Context, identity auth.Identity, req *models.LGPDRequest, student *models.Student) error {
	format := detailString(req.Details, "exportFormat")
	if format == "" {
		format = ExportJSON
	}
	export, err := s.buildExport(ctx, req.OrganizationID, student)
	if err != nil {
		return err
	}

	var content string
	switch format {
	case ExportCSV:
		content, err = RenderExportCSV(export)
	default:
		var raw []byte
		raw, err = json.Marshal(export)
		content = string(raw)
	}
	if err != nil {
		return err
	}

	now := nowFunc()
	fileName := fmt.Sprintf("lgpd_export_%s_%d.%s", student.ID, now.Unix(), format)
	data := map[string]interface{}{
		"fileName": fileName,
		"format":   format,
		"content":  content,
	}
	if format == ExportPDF {
		data["pendingRendering"] = true
	}

	if err := s.complete(ctx, req, fmt.Sprintf("Exportação gerada em formato %s", format), data,
		fmt.Sprintf("Exportação gerada: %s", fileName)); err != nil {
		return err
	}
	recordAudit(ctx, s, identity, AuditInput{
		StudentID:    &student.ID,
		ActionType:   models.AuditDataPortability,
		DataCategory: models.CategoryIdentificacao,
		Description:  fmt.Sprintf("Portabilidade de dados atendida: %s", format),
		LegalBasis:   LegalBasisDataSubject,
		Metadata:     map[string]interface{}{"requestId": req.ID, "fileName": fileName, "format": format},
	})
	return nil
}

// buildExport collects everything kept about a student
func (s *LGPDService) buildExport(ctx context.Context, orgID string, student *models.Student) (map[string]interface{}, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, orgID, student.ID)
	if err != nil {
		return nil, err
	}
	consents, err := s.lgpd.ListConsentsByStudent(ctx, orgID, student.ID)
	if err != nil {
		return nil, err
	}
	conversations, err := s.conversations.ListByStudent(ctx, orgID, student.ID)
	if err != nil {
		return nil, err
	}

	enrollmentRows := make([]map[string]interface{}, 0, len(enrollments))
	for _, e := range enrollments {
		enrollmentRows = append(enrollmentRows, map[string]interface{}{
			"id":               e.ID,
			"product":          e.Product,
			"status":           string(e.Status),
			"paymentStatus":    string(e.PaymentStatus),
			"totalValue":       e.TotalValue,
			"installments":     e.Installments,
			"paidInstallments": e.PaidInstallments,
			"progress":         e.Progress,
		})
	}
	conversationRows := make([]map[string]interface{}, 0, len(conversations))
	for _, c := range conversations {
		conversationRows = append(conversationRows, map[string]interface{}{
			"id":            c.ID,
			"channel":       c.Channel,
			"department":    c.Department,
			"status":        string(c.Status),
			"createdAt":     c.CreatedAt.Format(time.RFC3339),
			"lastMessageAt": c.LastMessageAt,
		})
	}

	return map[string]interface{}{
		"student":       s.personalData(student),
		"enrollments":   enrollmentRows,
		"consents":      consentSummaries(consents),
		"conversations": conversationRows,
		"exportedAt":    nowFunc().Format(time.RFC3339),
	}, nil
}

// RenderExportCSV flattens an export into section,field,value rows
func RenderExportCSV(export map[string]interface{}) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"section", "field", "value"}); err != nil {
		return "", err
	}

	sections := make([]string, 0, len(export))
	for k := range export {
		sections = append(sections, k)
	}
	sort.Strings(sections)

	for _, section := range sections {
		switch v := export[section].(type) {
		case map[string]interface{}:
			if err := writeCSVRecord(w, section, v); err != nil {
				return "", err
			}
		case []map[string]interface{}:
			for i, item := range v {
				if err := writeCSVRecord(w, fmt.Sprintf("%s[%d]", section, i), item); err != nil {
					return "", err
				}
			}
		default:
			if err := w.Write([]string{section, "", csvValue(v)}); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

func writeCSVRecord(w *csv.Writer, section string, record map[string]interface{}) error {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.Write([]string{section, k, csvValue(record[k])}); err != nil {
			return err
		}
	}
	return nil
}

func csvValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		return utils.Deref(t)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(time.RFC3339)
	case []string:
		return strings.Join(t, "|")
	}
	return fmt.Sprint(v)
}

func (s *LGPDService) processStandard(ctx context.Context, identity auth.Identity, req *models.LGPDRequest, student *models.Student) error {
	notes := ""
	switch req.RequestType {
	case models.RequestObjection:
		reason := detailString(req.Details, "objectionReason")
		if reason == "" {
			reason = req.Description
		}
		notes = fmt.Sprintf("Oposição registrada: %s", reason)
	case models.RequestRestriction:
		restricted, err := s.restrictProcessing(ctx, identity, student)
		if err != nil {
			return err
		}
		notes = fmt.Sprintf("%d consentimento(s) de tratamento acadêmico revogado(s)", restricted)
	}
	return s.complete(ctx, req, standardResponses[req.RequestType], nil, notes)
}

// restrictProcessing withdraws the academic processing consents of a student
func (s *LGPDService) restrictProcessing(ctx context.Context, identity auth.Identity, student *models.Student) (int, error) {
	consents, err := s.lgpd.ListConsentsByStudent(ctx, student.OrganizationID, student.ID)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range consents {
		c := &consents[i]
		if c.ConsentType != models.ConsentAcademicProcessing || c.Withdrawn {
			continue
		}
		if err := s.withdraw(ctx, identity, c, "Restrição de tratamento solicitada pelo titular"); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
