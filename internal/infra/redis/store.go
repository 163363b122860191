package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"saa-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	user:{id}                         hash: profile, credential and lifetime counters
//	user:name:{name}                  string: user id (unique names)
//	users                             list: user ids in registration order
//	user:{id}:days                    set: days with a daily row
//	user:{id}:homework                set: homework row keys
//	daily:{day}:{id}                  hash: daily counters
//	daily:{day}:users                 list: user ids in first-touch order
//	homework:{day}:{topic}:{q}:{id}   hash: one homework row
//	homework:{day}:{topic}            set: homework row keys
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// incrementScript adds the deltas to the user hash and the daily hash with HINCRBY and
// then recomputes attempts on both, all inside one script so no client can observe or
// interleave a partial update.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
if redis.call('EXISTS', KEYS[2]) == 0 then
  redis.call('HSET', KEYS[2], 'user_id', ARGV[6], 'day', ARGV[7], 'points', 0, 'correct', 0, 'wrong', 0, 'success', 0, 'failure', 0, 'attempts', 0)
  redis.call('RPUSH', KEYS[3], ARGV[6])
  redis.call('SADD', KEYS[4], ARGV[7])
end
local fields = {'points', 'correct', 'wrong', 'success', 'failure'}
for i, f in ipairs(fields) do
  local n = tonumber(ARGV[i])
  if n ~= 0 then
    redis.call('HINCRBY', KEYS[1], f, n)
    redis.call('HINCRBY', KEYS[2], f, n)
  end
end
for _, k in ipairs({KEYS[1], KEYS[2]}) do
  local s = tonumber(redis.call('HGET', k, 'success') or '0')
  local f = tonumber(redis.call('HGET', k, 'failure') or '0')
  redis.call('HSET', k, 'attempts', s + f)
end
return redis.call('HGETALL', KEYS[1])
`)

// touchDailyScript creates an empty daily row on first touch and returns it.
var touchDailyScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
if redis.call('EXISTS', KEYS[2]) == 0 then
  redis.call('HSET', KEYS[2], 'user_id', ARGV[1], 'day', ARGV[2], 'points', 0, 'correct', 0, 'wrong', 0, 'success', 0, 'failure', 0, 'attempts', 0)
  redis.call('RPUSH', KEYS[3], ARGV[1])
  redis.call('SADD', KEYS[4], ARGV[2])
end
return redis.call('HGETALL', KEYS[2])
`)

func (s *Store) CreateUser(ctx context.Context, user domain.UserRecord) error {
	ok, err := s.client.SetNX(ctx, nameKey(user.Name), user.ID, 0).Result()
	if err != nil {
		return unavailable("create user", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUserExists, user.Name)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, userKey(user.ID), map[string]interface{}{
			"id":         user.ID,
			"name":       user.Name,
			"school":     user.School,
			"team":       user.Team,
			"credential": user.Credential,
			"created_at": user.CreatedAt.UTC().Format(time.RFC3339Nano),
			"points":     user.Points,
			"correct":    user.Correct,
			"wrong":      user.Wrong,
			"success":    user.Success,
			"failure":    user.Failure,
			"attempts":   user.Success + user.Failure,
		})
		pipe.RPush(ctx, usersKey, user.ID)
		return nil
	})
	if err != nil {
		_ = s.client.Del(ctx, nameKey(user.Name)).Err()
		return unavailable("create user", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.UserRecord, error) {
	fields, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return domain.UserRecord{}, unavailable("get user", err)
	}
	if len(fields) == 0 {
		return domain.UserRecord{}, domain.ErrUserNotFound
	}
	return parseUser(fields), nil
}

func (s *Store) FindUserByName(ctx context.Context, name string) (domain.UserRecord, error) {
	id, err := s.client.Get(ctx, nameKey(name)).Result()
	if isNil(err) {
		return domain.UserRecord{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserRecord{}, unavailable("find user", err)
	}
	return s.GetUser(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserRecord, error) {
	ids, err := s.client.LRange(ctx, usersKey, 0, -1).Result()
	if err != nil {
		return nil, unavailable("list users", err)
	}
	hashes, err := s.hashes(ctx, ids, userKey)
	if err != nil {
		return nil, unavailable("list users", err)
	}
	out := make([]domain.UserRecord, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, parseUser(h))
	}
	return out, nil
}

// maxDeleteRetries bounds how often DeleteUser retries after a concurrent write to the
// user's keys.
const maxDeleteRetries = 5

// DeleteUser removes the user with its daily and homework rows. The row sets are read
// under WATCH so a concurrent increment or homework write aborts and retries the delete
// instead of leaving orphan rows.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	watched := []string{userKey(userID), userDaysKey(userID), userHomeworkKey(userID)}
	for i := 0; i < maxDeleteRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			return s.deleteUser(ctx, tx, userID)
		}, watched...)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrPersistenceUnavailable):
			return err
		default:
			return unavailable("delete user", err)
		}
	}
	return fmt.Errorf("%w: delete user %s: too many concurrent writes", domain.ErrPersistenceConflict, userID)
}

func (s *Store) deleteUser(ctx context.Context, tx *redis.Tx, userID string) error {
	name, err := tx.HGet(ctx, userKey(userID), "name").Result()
	if isNil(err) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return unavailable("delete user", err)
	}
	days, err := tx.SMembers(ctx, userDaysKey(userID)).Result()
	if err != nil {
		return unavailable("delete user", err)
	}
	rows, err := tx.SMembers(ctx, userHomeworkKey(userID)).Result()
	if err != nil {
		return unavailable("delete user", err)
	}
	indexes := make(map[string]string, len(rows))
	for _, row := range rows {
		loc, err := tx.HMGet(ctx, row, "day", "topic").Result()
		if err != nil {
			return unavailable("delete user", err)
		}
		day, _ := loc[0].(string)
		topic, _ := loc[1].(string)
		indexes[row] = homeworkIndexKey(day, topic)
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, userKey(userID), userDaysKey(userID), userHomeworkKey(userID))
		pipe.Del(ctx, nameKey(name))
		pipe.LRem(ctx, usersKey, 0, userID)
		for _, day := range days {
			pipe.Del(ctx, dailyKey(day, userID))
			pipe.LRem(ctx, dailyUsersKey(day), 0, userID)
		}
		for row, index := range indexes {
			pipe.Del(ctx, row)
			pipe.SRem(ctx, index, row)
		}
		return nil
	})
	return err
}

func (s *Store) Increment(ctx context.Context, userID, day string, delta domain.CounterDelta) (domain.UserRecord, error) {
	keys := []string{userKey(userID), dailyKey(day, userID), dailyUsersKey(day), userDaysKey(userID)}
	args := []interface{}{delta.Points, delta.Correct, delta.Wrong, delta.Success, delta.Failure, userID, day}
	res, err := incrementScript.Run(ctx, s.client, keys, args...).Slice()
	if isNil(err) {
		return domain.UserRecord{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserRecord{}, unavailable("increment", err)
	}
	return parseUser(pairs(res)), nil
}

func (s *Store) GetOrCreateDaily(ctx context.Context, userID, day string) (domain.DailyResult, error) {
	keys := []string{userKey(userID), dailyKey(day, userID), dailyUsersKey(day), userDaysKey(userID)}
	res, err := touchDailyScript.Run(ctx, s.client, keys, userID, day).Slice()
	if isNil(err) {
		return domain.DailyResult{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.DailyResult{}, unavailable("daily", err)
	}
	return parseDaily(pairs(res)), nil
}

func (s *Store) ListDaily(ctx context.Context, day string) ([]domain.DailyResult, error) {
	ids, err := s.client.LRange(ctx, dailyUsersKey(day), 0, -1).Result()
	if err != nil {
		return nil, unavailable("list daily", err)
	}
	hashes, err := s.hashes(ctx, ids, func(id string) string { return dailyKey(day, id) })
	if err != nil {
		return nil, unavailable("list daily", err)
	}
	out := make([]domain.DailyResult, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, parseDaily(h))
	}
	return out, nil
}

func (s *Store) RecordHomework(ctx context.Context, key domain.HomeworkKey, userName string, correct bool, at time.Time) (domain.HomeworkRecord, error) {
	row := homeworkKey(key)
	tally := "wrong"
	if correct {
		tally = "correct"
	}
	fields := map[string]interface{}{
		"day":          key.Day,
		"topic":        key.Topic,
		"question_id":  key.QuestionID,
		"user_id":      key.UserID,
		"last_correct": strconv.FormatBool(correct),
		"updated_at":   at.UTC().Format(time.RFC3339Nano),
	}
	if userName != "" {
		fields["user_name"] = userName
	}

	var result *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, row, fields)
		pipe.HIncrBy(ctx, row, "attempts", 1)
		pipe.HIncrBy(ctx, row, tally, 1)
		pipe.SAdd(ctx, homeworkIndexKey(key.Day, key.Topic), row)
		pipe.SAdd(ctx, userHomeworkKey(key.UserID), row)
		result = pipe.HGetAll(ctx, row)
		return nil
	})
	if err != nil {
		return domain.HomeworkRecord{}, unavailable("record homework", err)
	}
	return parseHomework(result.Val()), nil
}

func (s *Store) ListHomework(ctx context.Context, day, topic string) ([]domain.HomeworkRecord, error) {
	rows, err := s.client.SMembers(ctx, homeworkIndexKey(day, topic)).Result()
	if err != nil {
		return nil, unavailable("list homework", err)
	}
	hashes, err := s.hashes(ctx, rows, func(k string) string { return k })
	if err != nil {
		return nil, unavailable("list homework", err)
	}
	out := make([]domain.HomeworkRecord, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, parseHomework(h))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// hashes fetches HGETALL for every id in one pipeline, skipping missing keys.
func (s *Store) hashes(ctx context.Context, ids []string, key func(string) string) ([]map[string]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, key(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(cmds))
	for _, cmd := range cmds {
		if h := cmd.Val(); len(h) > 0 {
			out = append(out, h)
		}
	}
	return out, nil
}

const usersKey = "users"

func userKey(id string) string         { return "user:" + id }
func nameKey(name string) string       { return "user:name:" + name }
func userDaysKey(id string) string     { return "user:" + id + ":days" }
func userHomeworkKey(id string) string { return "user:" + id + ":homework" }
func dailyKey(day, id string) string   { return "daily:" + day + ":" + id }
func dailyUsersKey(day string) string  { return "daily:" + day + ":users" }

func homeworkIndexKey(day, topic string) string {
	return "homework:" + day + ":" + topic
}

func homeworkKey(k domain.HomeworkKey) string {
	return homeworkIndexKey(k.Day, k.Topic) + ":" + strconv.Itoa(k.QuestionID) + ":" + k.UserID
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistenceUnavailable, op, err)
}

// pairs turns a flat HGETALL script reply into a map.
func pairs(flat []interface{}) map[string]string {
	out := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		out[k] = v
	}
	return out
}

func atoi(h map[string]string, field string) int {
	n, _ := strconv.Atoi(h[field])
	return n
}

func parseCounters(h map[string]string) domain.Counters {
	c := domain.Counters{
		Points:  atoi(h, "points"),
		Correct: atoi(h, "correct"),
		Wrong:   atoi(h, "wrong"),
		Success: atoi(h, "success"),
		Failure: atoi(h, "failure"),
	}
	c.Attempts = c.Success + c.Failure
	return c
}

func parseUser(h map[string]string) domain.UserRecord {
	created, _ := time.Parse(time.RFC3339Nano, h["created_at"])
	return domain.UserRecord{
		ID:         h["id"],
		Name:       h["name"],
		School:     h["school"],
		Team:       h["team"],
		Credential: h["credential"],
		CreatedAt:  created,
		Counters:   parseCounters(h),
	}
}

func parseDaily(h map[string]string) domain.DailyResult {
	return domain.DailyResult{Day: h["day"], UserID: h["user_id"], Counters: parseCounters(h)}
}

func parseHomework(h map[string]string) domain.HomeworkRecord {
	updated, _ := time.Parse(time.RFC3339Nano, h["updated_at"])
	last, _ := strconv.ParseBool(h["last_correct"])
	return domain.HomeworkRecord{
		HomeworkKey: domain.HomeworkKey{
			Day:        h["day"],
			Topic:      h["topic"],
			QuestionID: atoi(h, "question_id"),
			UserID:     h["user_id"],
		},
		UserName:    h["user_name"],
		Attempts:    atoi(h, "attempts"),
		Correct:     atoi(h, "correct"),
		Wrong:       atoi(h, "wrong"),
		LastCorrect: last,
		UpdatedAt:   updated,
	}
}
