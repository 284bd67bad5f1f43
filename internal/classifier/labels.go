package classifier

// Labels is the fixed class ordering of the model output vector.
var Labels = []string{
	"Beagle",
	"Boxer",
	"Bulldog",
	"Dachshund",
	"German_Shepherd",
	"Golden_Retriever",
	"Labrador_Retriever",
	"Poodle",
	"Rottweiler",
	"Yorkshire_Terrier",
}

const noFact = "No facts available for this breed."

var breedFacts = map[string]string{
	"Beagle":             "Beagles have approximately 220 million scent receptors, compared to a human's mere 5 million!",
	"Boxer":              "Boxers were among the first dogs to be employed as police dogs and were used as messenger dogs during wartime.",
	"Bulldog":            "Despite their tough appearance, Bulldogs were bred to be companion dogs and are known for being gentle and patient.",
	"Dachshund":          "Dachshunds were originally bred to hunt badgers - their name literally means 'badger dog' in German!",
	"German_Shepherd":    "German Shepherds can learn a new command in as little as 5 repetitions and obey it 95% of the time.",
	"Golden_Retriever":   "Golden Retrievers were originally bred as hunting dogs to retrieve waterfowl without damaging them.",
	"Labrador_Retriever": "Labs have a special water-resistant coat and a unique otter-like tail that helps them swim efficiently.",
	"Poodle":             "Despite their elegant appearance, Poodles were originally water retrievers, and their fancy haircut had a practical purpose!",
	"Rottweiler":         "Rottweilers are descendants of Roman drover dogs and were used to herd livestock and pull carts for butchers.",
	"Yorkshire_Terrier":  "Yorkies were originally bred to catch rats in clothing mills. Despite their small size, they're true working dogs!",
}

// Fact returns a short trivia line about label.
func Fact(label string) string {
	if fact, ok := breedFacts[label]; ok {
		return fact
	}
	return noFact
}
