package config

// DefaultTexts is the passage pool used when no config file provides one,
// keyed by race duration in seconds.
func DefaultTexts() map[int][]string {
	return map[int][]string{
		60: {
			"Khalid went to the market and bought some fresh fruit.",
			"On a sunny morning the children went to the park to play.",
			"Reading widens the mind and adds to what we know.",
			"The cat sits by the window watching the sparrows.",
			"Success needs patience, effort and persistence.",
		},
		180: {
			"One day Sami decided to start learning to program, so he sat at the computer and began reading the lessons. After several hours of trying he managed to write his first simple program, and he felt great joy when he saw the result appear on the screen.",
			"Typing quickly takes steady practice at the keyboard. A racer has to stay focused and avoid spelling mistakes to reach the best possible result in the shortest time.",
			"In the evening the friends gathered around the table and traded stories and laughter. They talked about their adventures at school and the trips they took during the summer holidays.",
			"Teamwork achieves better results than working alone most of the time. When everyone cooperates and shares their ideas and skills, the work becomes easier, faster and more creative.",
		},
		300: {
			"On Friday morning the family woke up early and went on a trip to the sea. The weather was mild and the sky was clear, so everyone enjoyed swimming and collecting shells on the beach. Afterwards they ate breakfast together under the shade of a large tree and shared stories and laughter. On the way home they stopped at a fruit seller and bought some fresh dates and pomegranates.",
			"Ahmed loves reading history books because they give him an idea of the civilizations of ancient peoples and how they developed over time. One night he read about Babylon and how it was a centre of science and art. Inspired by the stories of ancient scholars, he decided to write an article about the importance of knowledge in building societies.",
			"Sport matters for the health of body and mind, so many people make sure to exercise every day. Running in the morning gives a person energy for the whole day, and team games strengthen the spirit of cooperation and fair competition between friends.",
		},
	}
}
