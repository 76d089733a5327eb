package readmodel

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// IndexEntry is one row of a secondary index: a product id and the value
// of the index's sort dimension.
type IndexEntry struct {
	ID    string
	Score float64
}

// IndexCursor resumes a range scan strictly after (Score, ID) in the
// active sort order. The tie-break within equal scores is the id
// ascending in the forward order, which keeps the total order stable
// across pages.
type IndexCursor struct {
	Score float64
	ID    string
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// rangeIndex walks the sorted set score band by score band. Members of
// an equal-score band follow the id-ascending tie-break of the forward
// order; a reversed walk visits them id-descending and resumes strictly
// before the cursor id, so pages never duplicate or drop rows at band
// boundaries in either direction.
func (s *Store) rangeIndex(ctx context.Context, key string, desc, reversed bool, cur *IndexCursor, limit int) ([]IndexEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	out := make([]IndexEntry, 0, limit)

	var bandScore float64
	var after string
	if cur != nil {
		bandScore, after = cur.Score, cur.ID
	} else {
		score, ok, err := s.edgeScore(ctx, key, desc)
		if err != nil || !ok {
			return out, err
		}
		bandScore = score
	}

	for len(out) < limit {
		members, err := s.bandMembers(ctx, key, bandScore)
		if err != nil {
			return nil, err
		}
		if reversed {
			for i, j := 0, len(members)-1; i < j; i, j = i+1, j-1 {
				members[i], members[j] = members[j], members[i]
			}
		}
		for _, m := range members {
			if after != "" {
				if reversed && m >= after {
					continue
				}
				if !reversed && m <= after {
					continue
				}
			}
			out = append(out, IndexEntry{ID: m, Score: bandScore})
			if len(out) == limit {
				return out, nil
			}
		}
		after = ""
		next, ok, err := s.nextScore(ctx, key, bandScore, desc)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		bandScore = next
	}
	return out, nil
}

// bandMembers returns every member holding exactly the given score, in
// lexicographic order.
func (s *Store) bandMembers(ctx context.Context, key string, score float64) ([]string, error) {
	v := formatScore(score)
	return s.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: v, Max: v}).Result()
}

// edgeScore returns the first score of the set in the given direction.
func (s *Store) edgeScore(ctx context.Context, key string, desc bool) (float64, bool, error) {
	var zs []redis.Z
	var err error
	if desc {
		zs, err = s.rdb.ZRevRangeWithScores(ctx, key, 0, 0).Result()
	} else {
		zs, err = s.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
	}
	if err != nil || len(zs) == 0 {
		return 0, false, err
	}
	return zs[0].Score, true, nil
}

// nextScore returns the score of the next band strictly beyond the given
// score in the scan direction.
func (s *Store) nextScore(ctx context.Context, key string, score float64, desc bool) (float64, bool, error) {
	var zs []redis.Z
	var err error
	if desc {
		zs, err = s.rdb.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Max: "(" + formatScore(score), Min: "-inf", Offset: 0, Count: 1,
		}).Result()
	} else {
		zs, err = s.rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min: "(" + formatScore(score), Max: "+inf", Offset: 0, Count: 1,
		}).Result()
	}
	if err != nil || len(zs) == 0 {
		return 0, false, err
	}
	return zs[0].Score, true, nil
}
