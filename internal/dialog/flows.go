package dialog

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/ivr"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/models"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/storage"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/validation"
)

// Caller-facing messages
const (
	msgLocked        = "יותר מדי נסיונות שגויים. נסו שוב מאוחר יותר"
	msgNotRegistered = "אינכם רשומים למערכת. הינכם מועברים להרשמה"
	msgWrongPassword = "הסיסמה שגויה"
	msgRegistered    = "ההרשמה הושלמה בהצלחה! הנכם מועברים לתפריט הראשי"
	msgReceiptIssued = "הקבלה הופקה בהצלחה! הנכם מועברים לתפריט הראשי"
	msgChildAdded    = "פרטי הילד נשמרו בהצלחה. הנכם מועברים לתפריט הראשי"
	msgDone          = "תודה. הפעולה הושלמה"
	msgConfirmKeys   = "נא הקישו 1 לאישור או 2 לתיקון"
	msgSystemError   = "אירעה שגיאה במערכת. נסו שוב מאוחר יותר"
)

func failureMessage(flow string) string {
	switch flow {
	case FlowRegistration:
		return "שגיאה בתהליך ההרשמה"
	case FlowReceipt:
		return "שגיאה בהפקת הקבלה"
	case FlowChild:
		return "שגיאה בשמירת פרטי הילד"
	}
	return msgSystemError
}

// check adapts a validator result to a step answer.
func check(step string, res validation.Result, value string) (string, error) {
	if !res.Valid {
		return "", invalid(step, res.Message)
	}
	return value, nil
}

func digits(name, text string, min, max int, confirm string) ivr.Prompt {
	return ivr.Prompt{Kind: ivr.KindDigits, Name: name, Text: text, Min: min, Max: max, ConfirmType: confirm}
}

func speech(t *turn, name, text string, min, max int) ivr.Prompt {
	return ivr.Prompt{Kind: ivr.KindSpeech, Name: name, Text: text, Min: min, Max: max, FileName: name + "_" + t.sess.Phone}
}

func nameStep(name, text string) *Step {
	return &Step{
		Name: name,
		Prompt: func(t *turn) ivr.Prompt {
			return speech(t, name, text, 2, 4)
		},
		Validate: func(t *turn, value string) (string, error) {
			return check(name, validation.Name(value), value)
		},
	}
}

func speechStep(name, text string, min int) *Step {
	return &Step{
		Name: name,
		Prompt: func(t *turn) ivr.Prompt {
			return speech(t, name, text, min, 4)
		},
		Validate: func(t *turn, value string) (string, error) {
			return check(name, validation.Speech(value), value)
		},
	}
}

// Login

var loginFlow = newFlow(FlowLogin, true,
	func(e *Engine) string { return "" },
	&Step{
		Name:      "password",
		Sensitive: true,
		Prompt: func(t *turn) ivr.Prompt {
			return digits("password", "לכניסה למערכת נא הקש את הסיסמה", 4, 10, "no")
		},
		Validate: func(t *turn, value string) (string, error) {
			ok, err := t.e.repo.VerifyPassword(t.ctx, t.sess.Phone, value)
			if err != nil {
				return "", &PersistenceError{Op: "verify password", Err: err}
			}
			if !ok {
				return "", invalid("password", msgWrongPassword)
			}
			return value, nil
		},
		Complete: func(t *turn, _ string) (ivr.Descriptor, string, error) {
			log.Printf("🔓 [%s] customer %d logged in", t.sess.CallID, t.sess.CustomerID)
			t.e.record(t, models.CallOutcomeTransferred)
			t.sess.End()
			return ivr.Transfer{Destination: t.e.cfg.Extensions.CustomerMenu}, resultTransferred, nil
		},
	},
)

// Registration

var registrationFlow = newFlow(FlowRegistration, false,
	func(e *Engine) string { return e.cfg.Extensions.Login },
	nameStep("name", "אמרו בקול ברור את שם בעל העסק"),
	&Step{
		Name: "tz",
		Prompt: func(t *turn) ivr.Prompt {
			return digits("tz", "נא הקש את מספר תעודת הזהות של בעל העסק", 9, 9, "no")
		},
		Validate: func(t *turn, value string) (string, error) {
			return check("tz", validation.IsraeliID(value), value)
		},
	},
	speechStep("company_name", "אמרו בקול ברור את שם העסק", 1),
	&Step{
		Name: "open_year",
		Prompt: func(t *turn) ivr.Prompt {
			return digits("open_year", "נא הקש בארבע ספרות את שנת פתיחת העסק", 4, 4, "digits")
		},
		Validate: func(t *turn, value string) (string, error) {
			return check("open_year", validation.OpenYear(value, t.now().Year()), value)
		},
	},
	speechStep("category", "אמרו בקול ברור את תחום העיסוק", 2),
	&Step{
		Name:      "password",
		Sensitive: true,
		Prompt: func(t *turn) ivr.Prompt {
			return digits("password", "נא בחר סיסמה להתחברות למערכת. הסיסמה צריכה להיות באורך של ארבע עד שמונה ספרות", 4, 8, "digits")
		},
		Validate: func(t *turn, value string) (string, error) {
			return check("password", validation.Password(value), value)
		},
		Complete: register,
	},
	&Step{
		Name: "confirm",
		Prompt: func(t *turn) ivr.Prompt {
			return ivr.Prompt{
				Kind:        ivr.KindMenu,
				Name:        "confirm",
				Text:        msgRegistered,
				EnabledKeys: "0",
				Extension:   t.e.cfg.Extensions.Login,
			}
		},
		Validate: func(t *turn, value string) (string, error) {
			if value != "0" {
				return "", invalid("confirm", "לחזרה לתפריט הראשי הקישו 0")
			}
			return value, nil
		},
		Complete: func(t *turn, _ string) (ivr.Descriptor, string, error) {
			t.e.record(t, models.CallOutcomeCompleted)
			t.sess.End()
			return ivr.Transfer{Destination: t.e.cfg.Extensions.Login}, resultCompleted, nil
		},
	},
)

// register creates the customer once the password is chosen and moves the
// caller to the confirmation menu.
func register(t *turn, password string) (ivr.Descriptor, string, error) {
	openYear, _ := strconv.Atoi(t.field("open_year"))

	customer, err := t.e.repo.CreateCustomer(t.ctx, &models.CustomerRegistration{
		Phone:            t.sess.Phone,
		Password:         password,
		Name:             t.field("name"),
		NationalID:       t.field("tz"),
		BusinessName:     t.field("company_name"),
		BusinessOpenYear: openYear,
		BusinessCategory: t.field("category"),
	})
	if errors.Is(err, storage.ErrDuplicatePhone) {
		return nil, "", &DuplicateError{Phone: t.sess.Phone}
	}
	if err != nil {
		return nil, "", &PersistenceError{Op: "create customer", Err: err}
	}

	log.Printf("✅ [%s] registered customer %d (%s)", t.sess.CallID, customer.ID, customer.Phone)
	t.sess.CustomerID = customer.ID

	confirm, _ := t.flow.Step("confirm")
	t.sess.Step = confirm.Name
	return confirm.Prompt(t), resultAdvanced, nil
}

// Receipt

var receiptFields = []string{"contact_name", "amount", "description", "confirm"}

var receiptFlow = newFlow(FlowReceipt, true,
	func(e *Engine) string { return e.cfg.Extensions.ReceiptMenu },
	nameStep("contact_name", "אמרו בקול ברור את שם הלקוח"),
	&Step{
		Name: "amount",
		Prompt: func(t *turn) ivr.Prompt {
			return digits("amount", "נא הקש את סכום הקבלה, לנקודה עשרונית לחץ כוכבית", 1, 9, "number")
		},
		Validate: func(t *turn, value string) (string, error) {
			amount, res := validation.ParseAmount(value)
			if !res.Valid {
				return "", invalid("amount", res.Message)
			}
			return strconv.FormatInt(amount, 10), nil
		},
	},
	speechStep("description", "אמרו את תיאור השירות או המוצר", 1),
	&Step{
		Name: "confirm",
		Prompt: func(t *turn) ivr.Prompt {
			return ivr.Prompt{
				Kind: ivr.KindMenu,
				Name: "confirm",
				Text: fmt.Sprintf("ביקשתם להפיק קבלה עבור %s, בסכום של %s. תיאור: %s. לאישור הקישו אחת, לתיקון הקישו שתים",
					t.field("contact_name"), t.field("amount"), t.field("description")),
				EnabledKeys: "1,2",
			}
		},
		Validate: func(t *turn, value string) (string, error) {
			if value != "1" && value != "2" {
				return "", invalid("confirm", msgConfirmKeys)
			}
			return value, nil
		},
		Complete: confirmReceipt,
	},
)

func confirmReceipt(t *turn, choice string) (ivr.Descriptor, string, error) {
	s := t.sess

	if choice == "2" {
		for _, f := range receiptFields {
			delete(s.Fields, f)
		}
		s.Attempts = map[string]int{}
		s.Step = t.flow.Initial()

		first, _ := t.flow.Step(s.Step)
		return first.Prompt(t), resultRestarted, nil
	}

	amount, err := strconv.ParseInt(t.field("amount"), 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("stored amount %q: %w", t.field("amount"), err)
	}

	contact, err := t.e.repo.FindOrCreateContact(t.ctx, s.CustomerID, t.field("contact_name"))
	if err != nil {
		return nil, "", &PersistenceError{Op: "find or create contact", Err: err}
	}

	receipt, err := t.e.repo.CreateReceipt(t.ctx, &models.Receipt{
		CustomerID:  s.CustomerID,
		ContactID:   contact.ID,
		CallID:      s.CallID,
		Amount:      amount,
		Description: t.field("description"),
	})
	if err != nil {
		return nil, "", &PersistenceError{Op: "create receipt", Err: err}
	}

	log.Printf("🧾 [%s] receipt %s issued to %s for %d", s.CallID, receipt.ReceiptNo, contact.Name, receipt.Amount)
	t.e.record(t, models.CallOutcomeCompleted)
	t.e.notifyReceipt(s.Phone, contact, receipt)
	s.End()

	return ivr.Terminal{Name: "receipt_issued", Message: msgReceiptIssued, Destination: t.e.cfg.Extensions.ReceiptMenu}, resultCompleted, nil
}

// Children

var childFlow = newFlow(FlowChild, true,
	func(e *Engine) string { return e.cfg.Extensions.CustomerMenu },
	nameStep("child_name", "אמרו בקול ברור את שם הילד"),
	&Step{
		Name: "birth_year",
		Prompt: func(t *turn) ivr.Prompt {
			return digits("birth_year", "נא הקש בארבע ספרות את שנת הלידה של הילד", 4, 4, "digits")
		},
		Validate: func(t *turn, value string) (string, error) {
			return check("birth_year", validation.BirthYear(value, t.now().Year()), value)
		},
		Complete: func(t *turn, value string) (ivr.Descriptor, string, error) {
			year, _ := strconv.Atoi(value)
			child, err := t.e.repo.CreateChild(t.ctx, &models.Child{
				CustomerID: t.sess.CustomerID,
				Name:       t.field("child_name"),
				BirthYear:  year,
			})
			if err != nil {
				return nil, "", &PersistenceError{Op: "create child", Err: err}
			}

			log.Printf("👶 [%s] child %d added for customer %d", t.sess.CallID, child.ID, t.sess.CustomerID)
			t.e.record(t, models.CallOutcomeCompleted)
			t.sess.End()
			return ivr.Terminal{Name: "child_added", Message: msgChildAdded, Destination: t.e.cfg.Extensions.CustomerMenu}, resultCompleted, nil
		},
	},
)
