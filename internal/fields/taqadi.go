package fields

import (
	"github.com/shehryarbajwa/casefiler/internal/dom"
	"github.com/shehryarbajwa/casefiler/pkg/models"
)

// Document keys accepted in SubmissionRequest.Documents
const (
	DocCommercialRegister  = "commercialRegister"
	DocEstablishmentRecord = "establishmentRecord"
	DocIBANCertificate     = "ibanCertificate"
	DocIDCard              = "idCard"
	DocContract            = "contract"
	DocExplanatoryMemo     = "explanatoryMemo"
	DocDocumentsList       = "documentsList"
)

// Taqadi returns the selector table for the e-litigation portal's
// "new case" wizard (Kendo UI widgets, Arabic labels).
func Taqadi() *Table {
	fileInput := Candidates{
		dom.CSS(`.k-upload input[type="file"]`),
		dom.CSS(`input[type="file"]`),
	}
	addDocument := Candidates{
		dom.WithText("button", "إضافة مستند"),
		dom.WithText("a", "إضافة مستند"),
		dom.WithText("button, a", "إضافة ملف"),
		dom.WithText("button, a", "رفع"),
	}

	return &Table{
		TargetURL: TargetURL,
		Auth: AuthCheck{
			URLContains: []string{"/itc/home", "/home"},
			Markers: []dom.Locator{
				dom.CSS(".user-profile"),
				dom.WithText("a", "تسجيل الخروج"),
			},
		},
		StartRecord: Candidates{
			dom.CSS(`a[href*="caseinfo/create"]`),
			dom.WithText("a", "إنشاء دعوى"),
			dom.WithText("button", "إنشاء دعوى"),
			dom.WithText("a, button", "دعوى جديدة"),
		},
		Category: Candidates{
			dom.WithText("li.k-item", "عقود الخدمات التجارية"),
			dom.WithText("li", "عقود الخدمات التجارية"),
		},
		SubCategory: Candidates{
			dom.WithText("li.k-item", "عقود إيجار السيارات"),
			dom.WithText("li", "عقود إيجار السيارات"),
		},
		Next: Candidates{
			dom.WithText("a", "التالي"),
			dom.WithText("button", "التالي"),
		},
		Fields: []FieldSpec{
			{
				Name: "title",
				Kind: KindText,
				Candidates: Candidates{
					dom.CSS(`input[aria-label*="عنوان الدعوى"]`),
					dom.CSS(`input[name*="title" i]`),
					dom.CSS("input.k-textbox"),
				},
				Value: func(r models.SubmissionRequest) string { return r.Texts.Title },
			},
			{
				Name: "facts",
				Kind: KindTextarea,
				Candidates: Candidates{
					dom.CSS(`textarea[aria-label*="الوقائع"]`),
					dom.CSS(`textarea[name*="facts" i]`),
					dom.CSS("textarea"),
				},
				Value: func(r models.SubmissionRequest) string { return r.Texts.Facts },
			},
			{
				Name: "claims",
				Kind: KindTextarea,
				Candidates: Candidates{
					dom.CSS(`textarea[aria-label*="الطلبات"]`),
					dom.CSS(`textarea[name*="claims" i]`),
					dom.CSS("textarea:nth-of-type(2)"),
				},
				Value: func(r models.SubmissionRequest) string { return r.Texts.Claims },
			},
			{
				Name: "amount",
				Kind: KindText,
				Candidates: Candidates{
					dom.CSS(`input[aria-label*="قيمة المطالبة"]`),
					dom.CSS(`input[type="number"]`),
					dom.CSS("input.k-formatted-value"),
				},
				Value: AmountValue,
			},
			{
				Name: "amountInWords",
				Kind: KindText,
				Candidates: Candidates{
					dom.CSS(`input[aria-label*="المبلغ الإجمالي كتابة"]`),
					dom.CSS(`input[aria-label*="كتابة"]`),
				},
				Value: AmountInWordsValue,
			},
			{
				Name:       "overdueRent",
				Kind:       KindText,
				Candidates: Candidates{dom.CSS(`input[aria-label*="الإيجار المتأخر"]`)},
				Value:      func(r models.SubmissionRequest) string { return FormatAmount(r.Amounts.OverdueRent) },
			},
			{
				Name:       "lateFees",
				Kind:       KindText,
				Candidates: Candidates{dom.CSS(`input[aria-label*="غرامات التأخير"]`)},
				Value:      func(r models.SubmissionRequest) string { return FormatAmount(r.Amounts.LateFees) },
			},
			{
				Name:       "violations",
				Kind:       KindText,
				Candidates: Candidates{dom.CSS(`input[aria-label*="المخالفات"]`)},
				Value:      func(r models.SubmissionRequest) string { return FormatAmount(r.Amounts.Violations) },
			},
			{
				Name:       "otherFees",
				Kind:       KindText,
				Candidates: Candidates{dom.CSS(`input[aria-label*="رسوم أخرى"]`)},
				Value:      func(r models.SubmissionRequest) string { return FormatAmount(r.Amounts.OtherFees) },
			},
			{
				Name: "counterPartyName",
				Kind: KindText,
				Candidates: Candidates{
					dom.CSS(`input[aria-label*="اسم المدعى عليه"]`),
					dom.CSS(`input[aria-label*="الاسم"]`),
				},
				Value: func(r models.SubmissionRequest) string { return r.CounterParty.Name },
			},
			{
				Name: "counterPartyPhone",
				Kind: KindText,
				Candidates: Candidates{
					dom.CSS(`input[aria-label*="هاتف"]`),
					dom.CSS(`input[type="tel"]`),
				},
				Value: func(r models.SubmissionRequest) string { return r.CounterParty.Phone },
			},
			{
				Name: "counterPartyNationalId",
				Kind: KindText,
				Candidates: Candidates{
					dom.CSS(`input[aria-label*="رقم الهوية"]`),
					dom.CSS(`input[aria-label*="QID"]`),
				},
				Value: func(r models.SubmissionRequest) string { return r.CounterParty.NationalID },
			},
		},
		Documents: []DocumentSpec{
			{Key: DocCommercialRegister, Label: "السجل التجاري", Filename: "السجل التجاري.pdf", Trigger: addDocument, Candidates: fileInput},
			{Key: DocEstablishmentRecord, Label: "قيد المنشأة", Filename: "قيد المنشأة.pdf", Trigger: addDocument, Candidates: fileInput},
			{Key: DocIBANCertificate, Label: "شهادة IBAN", Filename: "شهادة IBAN.pdf", Trigger: addDocument, Candidates: fileInput},
			{Key: DocIDCard, Label: "البطاقة الشخصية", Filename: "البطاقة الشخصية.pdf", Trigger: addDocument, Candidates: fileInput},
			{Key: DocContract, Label: "العقد", Filename: "العقد.pdf", Trigger: addDocument, Candidates: fileInput},
			{Key: DocExplanatoryMemo, Label: "المذكرة الشارحة", Filename: "المذكرة الشارحة.pdf", Trigger: addDocument, Candidates: fileInput},
			{Key: DocDocumentsList, Label: "حافظة المستندات", Filename: "حافظة المستندات.pdf", Trigger: addDocument, Candidates: fileInput},
		},
	}
}
