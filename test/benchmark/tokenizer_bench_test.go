package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/tokenizer"
)

var sampleTexts = map[string]string{
	"short": "Neuralace: a flexible mesh BCI for the cortex.",
	"medium": `Flexible polyimide substrates conform to the cortical surface and reduce
        the chronic foreign-body response seen with rigid silicon arrays. Thin-film
        encapsulation keeps moisture away from the interconnects, while wireless
        telemetry removes the percutaneous connector that dominates infection risk
        in long-term implants. The 510(k) pathway is unlikely for a novel design;
        a De Novo request or PMA with Breakthrough Device designation is more typical.`,
	"long": strings.Repeat(`Brain-computer interface research spans electrode materials,
        signal decoding and regulatory strategy. High channel counts improve motor
        decoding accuracy, but every additional channel adds power and bandwidth load
        to the implant. Biocompatibility testing under ISO 10993 and reimbursement
        planning with CMS shape the clinical trial design long before first-in-human
        studies begin. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	stemmers := []tokenizer.Stemmer{tokenizer.StemNone, tokenizer.StemSuffix, tokenizer.StemPorter}
	for _, stemmer := range stemmers {
		opts := tokenizer.DefaultOptions()
		opts.Stemmer = stemmer
		tok := tokenizer.New(opts)
		for name, text := range sampleTexts {
			b.Run(string(stemmer)+"/"+name, func(b *testing.B) {
				b.ReportAllocs()
				b.SetBytes(int64(len(text)))
				for i := 0; i < b.N; i++ {
					_ = tok.Tokenize(text)
				}
			})
		}
	}
}

func BenchmarkTerms_NoStopWords(b *testing.B) {
	tok := tokenizer.New(tokenizer.Options{RemoveStopWords: false, Stemmer: tokenizer.StemNone})
	text := sampleTexts["long"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = tok.Terms(text)
	}
}
