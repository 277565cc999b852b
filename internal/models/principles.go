package models

// PrimaryEvaluationCategories are the preferred principle_to_evaluate values
var PrimaryEvaluationCategories = []string{
	"Fostering Meaningful Connection",
	"Psychological Safety and Emotional Well-Being",
	"User Autonomy and Freedom from Manipulation",
	"Transparency and Explainability",
	"Trustworthiness and Reliability",
	"Fairness and Inclusivity",
	"Privacy and Data Rights",
	"Accountability and Human Oversight",
	"Ethical Alignment and Moral Integrity",
	"Human Well-Being and Flourishing",
	"Crisis Response and Emergency Situations",
}

// HumanePrinciples is the coarse principle set used for dataset balance
var HumanePrinciples = []string{
	"Protect Attention and Intention",
	"Support Well-being",
	"Enhance Agency",
	"Foster Connection and Empathy",
	"Promote Sense-making and Understanding",
	"Respect Diversity and Inclusion",
}

// ScenarioCategories steer balanced generation
var ScenarioCategories = []string{
	"individual_advice",
	"societal_questions",
	"vulnerable_populations",
	"moral_ambiguity",
	"crisis_situations",
	"everyday_decisions",
}

// VulnerablePopulations to include in generated scenarios
var VulnerablePopulations = []string{
	"teenagers",
	"elderly",
	"people_in_crisis",
	"people_with_disabilities",
	"non_native_speakers",
	"low_tech_literacy",
}

// TopicDomains to cover
var TopicDomains = []string{
	"relationships",
	"mental_health",
	"financial_decisions",
	"career_guidance",
	"parenting",
	"health_wellness",
	"technology_use",
	"social_media",
	"politics_society",
	"education",
	"privacy_data",
	"consumer_decisions",
}
