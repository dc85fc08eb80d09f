package taxonomy

import "slices"

// Roles lists the selectable target roles, sentinel first.
var roles = []string{
	UnselectedRole,
	"Data Analyst",
	"Data Scientist",
	"Machine Learning Engineer",
	"Data Engineer",
	"AI Researcher",
	"Software Developer",
	"Full Stack Developer",
	"Product Manager",
	"DevOps Engineer",
	"Cloud Architect",
	"Cybersecurity Specialist",
	"BI Developer",
	"Prompt Engineer / GenAI Specialist",
}

var learningModes = []string{"Self-paced", "Mentor-led", "Bootcamp", "Hybrid"}

// FlexibleTimeframe is the timeframe whose length is given in months.
const FlexibleTimeframe = "Flexible"

var timeframes = []string{"3 months", "6 months", "1 year", FlexibleTimeframe}

// Custom timeframe bounds, in months.
const (
	MinCustomMonths     = 1
	MaxCustomMonths     = 60
	DefaultCustomMonths = 12
)

// Defaults applied to a profile that has never been saved.
const (
	DefaultLearningMode = "Self-paced"
	DefaultTimeframe    = "6 months"
)

// Roles returns the selectable roles with the sentinel first.
func Roles() []string { return slices.Clone(roles) }

// LearningModes returns the supported learning modes.
func LearningModes() []string { return slices.Clone(learningModes) }

// Timeframes returns the supported timeframes.
func Timeframes() []string { return slices.Clone(timeframes) }

// IsRole reports whether role is one of Roles(), sentinel included.
func IsRole(role string) bool { return slices.Contains(roles, role) }

// IsLearningMode reports whether mode is supported.
func IsLearningMode(mode string) bool { return slices.Contains(learningModes, mode) }

// IsTimeframe reports whether tf is supported.
func IsTimeframe(tf string) bool { return slices.Contains(timeframes, tf) }

var defaultCategories = []Category{
	{Name: "Programming Languages", Skills: []string{
		"Python", "R", "Java", "C++", "JavaScript", "SQL", "Scala",
	}},
	{Name: "Machine Learning & AI", Skills: []string{
		"Machine Learning", "Deep Learning", "Natural Language Processing (NLP)",
		"Generative AI", "Computer Vision", "Reinforcement Learning",
		"Feature Engineering", "Model Deployment", "MLOps",
	}},
	{Name: "Data Engineering", Skills: []string{
		"ETL", "Data Pipelines", "Apache Spark", "Kafka",
		"Hadoop", "Data Warehousing", "Data Wrangling",
	}},
	{Name: "Cloud & DevOps", Skills: []string{
		"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Terraform", "CI/CD", "Linux",
	}},
	{Name: "Data Visualization & BI", Skills: []string{
		"Power BI", "Tableau", "Excel", "Matplotlib", "Seaborn", "Plotly", "Dash",
	}},
	{Name: "Frameworks & Libraries", Skills: []string{
		"TensorFlow", "PyTorch", "Scikit-learn", "Keras",
		"Pandas", "NumPy", "OpenCV", "NLTK", "Hugging Face Transformers",
	}},
	{Name: "Software Development", Skills: []string{
		"React", "Node.js", "Flask", "Django", "Git", "APIs", "Agile Methodology",
	}},
	{Name: "Other Technical Skills", Skills: []string{
		"Statistics", "Data Analysis", "Big Data", "Prompt Engineering",
		"Cybersecurity", "System Design",
	}},
}

// Roles without an entry here fall back to the full flattened set.
var defaultRoleSkills = map[string][]string{
	"Data Analyst": {
		"Programming Languages: SQL", "Programming Languages: Python",
		"Data Visualization & BI: Power BI", "Data Visualization & BI: Tableau",
		"Data Visualization & BI: Excel", "Other Technical Skills: Statistics",
	},
	"Data Scientist": {
		"Programming Languages: Python", "Machine Learning & AI: Machine Learning",
		"Machine Learning & AI: Deep Learning", "Machine Learning & AI: Natural Language Processing (NLP)",
		"Machine Learning & AI: Feature Engineering", "Frameworks & Libraries: Scikit-learn",
		"Frameworks & Libraries: Pandas", "Frameworks & Libraries: NumPy",
	},
	"Machine Learning Engineer": {
		"Programming Languages: Python", "Machine Learning & AI: Deep Learning",
		"Frameworks & Libraries: TensorFlow", "Frameworks & Libraries: PyTorch",
		"Machine Learning & AI: MLOps", "Machine Learning & AI: Model Deployment",
		"Cloud & DevOps: AWS", "Cloud & DevOps: Azure", "Cloud & DevOps: GCP",
		"Cloud & DevOps: Docker", "Cloud & DevOps: Kubernetes", "Cloud & DevOps: CI/CD",
	},
	"Data Engineer": {
		"Programming Languages: SQL", "Programming Languages: Python",
		"Data Engineering: ETL", "Data Engineering: Data Pipelines",
		"Data Engineering: Apache Spark", "Data Engineering: Kafka",
		"Cloud & DevOps: AWS", "Cloud & DevOps: Docker", "Cloud & DevOps: Kubernetes",
	},
	"AI Researcher": {
		"Programming Languages: Python", "Machine Learning & AI: Deep Learning",
		"Machine Learning & AI: Generative AI", "Machine Learning & AI: Natural Language Processing (NLP)",
		"Frameworks & Libraries: PyTorch", "Machine Learning & AI: Computer Vision",
		"Machine Learning & AI: Reinforcement Learning", "Other Technical Skills: Statistics",
	},
	"Software Developer": {
		"Programming Languages: Python", "Programming Languages: JavaScript",
		"Software Development: React", "Software Development: Node.js",
		"Software Development: Git", "Software Development: APIs",
		"Software Development: Agile Methodology",
	},
	"Full Stack Developer": {
		"Programming Languages: JavaScript", "Programming Languages: Python",
		"Software Development: React", "Software Development: Node.js",
		"Software Development: Django", "Software Development: Flask",
		"Programming Languages: SQL", "Software Development: Git",
	},
	"Prompt Engineer / GenAI Specialist": {
		"Other Technical Skills: Prompt Engineering", "Machine Learning & AI: Generative AI",
		"Machine Learning & AI: Natural Language Processing (NLP)", "Programming Languages: Python",
		"Frameworks & Libraries: Hugging Face Transformers",
	},
}
