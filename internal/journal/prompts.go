package journal

import "math/rand/v2"

// Greeting pools keyed by period of day.
var greetingPools = map[Period][]string{
	PeriodMorning: {
		"Good morning! How did you sleep?",
		"Morning! What's on your mind today?",
		"Good morning! Anything you're looking forward to today?",
	},
	PeriodNoon: {
		"Hope your day is going well! What's been happening?",
		"Hey! How has your morning been?",
	},
	PeriodAfternoon: {
		"Good afternoon! How is your day going?",
		"Hey! Anything interesting happen so far today?",
	},
	PeriodEvening: {
		"Good evening! How was your day?",
		"Hey! How are you doing tonight?",
		"Evening! What stood out about today?",
	},
}

// checkinPrompts invite the user into a journaling exchange after a greeting.
var checkinPrompts = []string{
	"Tell me about something you experienced today.",
	"What would you like to remember about today?",
	"Share anything that happened today, big or small.",
}

// continuationPrompts keep the collecting loop going.
var continuationPrompts = []string{
	"Tell me more.",
	"What else?",
	"Anything else?",
	"I'm listening.",
	"Go on.",
}

// closingRemarks end a collecting exchange.
var closingRemarks = []string{
	"Thanks for sharing. Talk to you later",
	"Thanks for sharing. Talk soon",
	"Got it all down. Talk to you later",
}

// reflectionAcks respond to a reflection answer.
var reflectionAcks = []string{
	"That's a beautiful thought. Thanks for reflecting with me.",
	"Thank you for sitting with that question.",
	"I'll keep that one safe. Thanks for reflecting.",
}

// farewells respond to an explicit end of the dialogue.
var farewells = []string{
	"Bye! Talk to you tomorrow.",
	"Take care! I'll check in with you later.",
	"Goodnight! I'll be here when you need me.",
}

// fallbackAnswers are used when the completion service is unavailable or fails.
var fallbackAnswers = []string{
	"That's a good question. I don't have an answer right now.",
	"I'm not sure about that one, but I'm happy to keep listening.",
}

// Pick returns one string chosen uniformly at random from the pool, or the
// empty string for an empty pool. It never returns a value outside the pool
// and never blocks.
func Pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.IntN(len(pool))]
}

// Sample returns up to n distinct strings from the pool in shuffled order.
func Sample(pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return nil
	}
	shuffled := make([]string, len(pool))
	copy(shuffled, pool)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// Greeting picks a greeting appropriate for the period of day.
func Greeting(p Period) string {
	return Pick(greetingPools[p])
}
