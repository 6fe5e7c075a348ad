package medsummary

import "strings"

type Domain string

const (
	DomainCardiovascular   Domain = "cardiovascular"
	DomainRespiratory      Domain = "respiratory"
	DomainGastrointestinal Domain = "gastrointestinal"
	DomainNeurological     Domain = "neurological"
	DomainEndocrine        Domain = "endocrine"
	DomainRenal            Domain = "renal"
	DomainHematologic      Domain = "hematologic"
	DomainGeneral          Domain = "general"
)

// Term maps a clinical expression to plain language.
type Term struct {
	Clinical string
	Plain    string
	Domain   Domain
}

// clinicalTerms is ordered; the ordered translation mode depends on it.
var clinicalTerms = []Term{
	{"myocardial infarction", "heart attack", DomainCardiovascular},
	{"coronary artery disease", "heart disease", DomainCardiovascular},
	{"hypertension", "high blood pressure", DomainCardiovascular},
	{"hypotension", "low blood pressure", DomainCardiovascular},
	{"tachycardia", "fast heart rate", DomainCardiovascular},
	{"bradycardia", "slow heart rate", DomainCardiovascular},
	{"arrhythmia", "irregular heartbeat", DomainCardiovascular},
	{"angina", "chest pain", DomainCardiovascular},
	{"atherosclerosis", "hardening of arteries", DomainCardiovascular},
	{"cardiomyopathy", "heart muscle disease", DomainCardiovascular},
	{"cardiopulmonary", "heart and lung", DomainCardiovascular},

	{"pneumonia", "lung infection", DomainRespiratory},
	{"bronchitis", "inflammation of airways", DomainRespiratory},
	{"asthma", "breathing condition", DomainRespiratory},
	{"COPD", "chronic lung disease", DomainRespiratory},
	{"dyspnea", "shortness of breath", DomainRespiratory},
	{"tachypnea", "rapid breathing", DomainRespiratory},
	{"hypoxia", "low oxygen levels", DomainRespiratory},
	{"pulmonary edema", "fluid in lungs", DomainRespiratory},
	{"pneumothorax", "collapsed lung", DomainRespiratory},
	{"pleural effusion", "fluid around the lungs", DomainRespiratory},

	{"gastroenteritis", "stomach flu", DomainGastrointestinal},
	{"hepatitis", "liver inflammation", DomainGastrointestinal},
	{"cirrhosis", "liver scarring", DomainGastrointestinal},
	{"cholecystitis", "gallbladder inflammation", DomainGastrointestinal},
	{"pancreatitis", "pancreas inflammation", DomainGastrointestinal},
	{"gastritis", "stomach inflammation", DomainGastrointestinal},
	{"ulcer", "sore in stomach/intestine", DomainGastrointestinal},
	{"GERD", "acid reflux", DomainGastrointestinal},

	{"cerebrovascular accident", "stroke", DomainNeurological},
	{"transient ischemic attack", "mini-stroke", DomainNeurological},
	{"migraine", "severe headache", DomainNeurological},
	{"epilepsy", "seizure disorder", DomainNeurological},
	{"dementia", "memory loss condition", DomainNeurological},
	{"Alzheimer's disease", "memory disease", DomainNeurological},
	{"Parkinson's disease", "movement disorder", DomainNeurological},
	{"multiple sclerosis", "nervous system disease", DomainNeurological},

	{"diabetes mellitus", "diabetes", DomainEndocrine},
	{"hyperglycemia", "high blood sugar", DomainEndocrine},
	{"hypoglycemia", "low blood sugar", DomainEndocrine},
	{"hyperthyroidism", "overactive thyroid", DomainEndocrine},
	{"hypothyroidism", "underactive thyroid", DomainEndocrine},
	{"diabetic ketoacidosis", "diabetes complication", DomainEndocrine},

	{"acute kidney injury", "sudden kidney damage", DomainRenal},
	{"chronic kidney disease", "long-term kidney disease", DomainRenal},
	{"nephritis", "kidney inflammation", DomainRenal},
	{"renal failure", "kidney failure", DomainRenal},
	{"dialysis", "kidney treatment", DomainRenal},

	{"anemia", "low red blood cells", DomainHematologic},
	{"leukemia", "blood cancer", DomainHematologic},
	{"thrombosis", "blood clot", DomainHematologic},
	{"hemorrhage", "bleeding", DomainHematologic},
	{"coagulopathy", "bleeding disorder", DomainHematologic},

	{"malignancy", "cancer", DomainGeneral},
	{"benign", "non-cancerous", DomainGeneral},
	{"acute", "sudden onset", DomainGeneral},
	{"chronic", "long-term", DomainGeneral},
	{"inflammation", "swelling", DomainGeneral},
	{"infection", "germ invasion", DomainGeneral},
	{"fracture", "broken bone", DomainGeneral},
	{"contusion", "bruise", DomainGeneral},
	{"laceration", "cut", DomainGeneral},
	{"abrasion", "scrape", DomainGeneral},
	{"edema", "swelling", DomainGeneral},
	{"fever", "high temperature", DomainGeneral},
	{"nausea", "feeling sick", DomainGeneral},
	{"vomiting", "throwing up", DomainGeneral},
	{"diarrhea", "loose stools", DomainGeneral},
	{"constipation", "hard stools", DomainGeneral},
	{"fatigue", "tiredness", DomainGeneral},
	{"malaise", "general feeling of illness", DomainGeneral},
}

// pluralForms maps the key of a countable clinical term to its plural and the
// plural of its plain wording. Word-bounded matching would otherwise leave
// "fractures" or "ulcers" untranslated.
var pluralForms = map[string][2]string{
	"myocardial infarction":     {"myocardial infarctions", "heart attacks"},
	"arrhythmia":                {"arrhythmias", "irregular heartbeats"},
	"cardiomyopathy":            {"cardiomyopathies", "heart muscle diseases"},
	"pleural effusion":          {"pleural effusions", "fluid around the lungs"},
	"ulcer":                     {"ulcers", "sores in stomach/intestine"},
	"cerebrovascular accident":  {"cerebrovascular accidents", "strokes"},
	"transient ischemic attack": {"transient ischemic attacks", "mini-strokes"},
	"migraine":                  {"migraines", "severe headaches"},
	"hemorrhage":                {"hemorrhages", "bleeds"},
	"malignancy":                {"malignancies", "cancers"},
	"infection":                 {"infections", "germ invasions"},
	"fracture":                  {"fractures", "broken bones"},
	"contusion":                 {"contusions", "bruises"},
	"laceration":                {"lacerations", "cuts"},
	"abrasion":                  {"abrasions", "scrapes"},
}

// Terms returns a copy of the built-in terminology table in table order.
func Terms() []Term {
	return append([]Term(nil), clinicalTerms...)
}

// TermsByDomain groups the table by clinical domain, preserving order.
func TermsByDomain() map[Domain][]Term {
	out := map[Domain][]Term{}
	for _, t := range clinicalTerms {
		out[t.Domain] = append(out[t.Domain], t)
	}
	return out
}

// termKey folds case, apostrophes and inner whitespace so that a matched
// span and its table entry compare equal.
func termKey(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "'", ""))
	return strings.Join(strings.Fields(s), " ")
}
