package system

import (
	"testing"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/data"
)

func TestLethalMeleeKillsOnceAndAwardsExperienceOnce(t *testing.T) {
	f := newFixture(t, 16, 16)
	p := f.player(5, 5)
	c := f.creature(f.template(nil), 6, 5)
	rt, _ := f.world.Creatures.Get(c)
	rt.HP = 5

	var died []event.CreatureDied
	var levels []event.LevelUp
	event.Subscribe(f.world.Bus, func(e event.CreatureDied) { died = append(died, e) })
	event.Subscribe(f.world.Bus, func(e event.LevelUp) { levels = append(levels, e) })

	prof, _ := f.world.Combat.Get(p)
	prof.Target = c
	cs := f.combat(dice(0.99))
	cs.Update(0)

	if rt.HP != 0 {
		t.Fatalf("creature HP = %d, want clamped to 0", rt.HP)
	}
	if f.state(c) != component.AIDead {
		t.Fatalf("creature state = %v, want Dead", f.state(c))
	}
	st, _ := f.world.Stats.Get(p)
	if st.Experience != 150 {
		t.Fatalf("experience = %d, want 150", st.Experience)
	}
	if prof.Target != 0 {
		t.Fatal("attacker target not cleared")
	}

	cs.Update(0)
	cs.KillCreature(c, p)
	if st.Experience != 150 || len(died) != 1 {
		t.Fatalf("death processed again: exp=%d died=%d", st.Experience, len(died))
	}
	if len(levels) != 1 || levels[0].Level != 2 || st.Level != 2 {
		t.Fatalf("level ups = %+v level=%d", levels, st.Level)
	}
	if f.world.OccupantAt(0, 6, 5) != 0 {
		t.Fatal("corpse still blocks its tile")
	}
	if f.world.Intents.Has(c) || f.world.Movers.Has(c) || !f.world.Corpses.Has(c) {
		t.Fatal("corpse keeps movement components")
	}
}

func TestDamageIsNeverNegative(t *testing.T) {
	f := newFixture(t, 16, 16)
	p := f.player(5, 5)
	c := f.creature(f.template(func(tpl *data.CreatureTemplate) { tpl.Armor = 1000 }), 6, 5)
	prof, _ := f.world.Combat.Get(p)
	prof.Target = c
	f.combat(dice(0.99)).Update(0)

	rt, _ := f.world.Creatures.Get(c)
	if rt.HP != rt.MaxHP {
		t.Fatalf("HP = %d, want unchanged %d", rt.HP, rt.MaxHP)
	}
	sk, _ := f.world.Skills.Get(p)
	if sk.Skills[component.SkillSword].Tries != 1 {
		t.Fatal("attack did not train the weapon skill")
	}
}

func TestDistanceAttackPenaltyPerTile(t *testing.T) {
	for _, dist := range []int32{1, 5} {
		f := newFixture(t, 32, 16)
		p := f.player(5, 5)
		c := f.creature(f.template(func(tpl *data.CreatureTemplate) { tpl.HP = 1000 }), 5+dist, 5)
		prof, _ := f.world.Combat.Get(p)
		prof.Target = c
		prof.WeaponSkill = component.SkillDistance
		prof.WeaponRange = 7
		f.combat(dice(0.5)).Update(0)

		max := combat.Standard{}.MeleeMaxDamage(10, 20, 1)
		want := combat.Settle(0.5*max*combat.DistanceFactor(dist), 0)
		rt, _ := f.world.Creatures.Get(c)
		if got := rt.MaxHP - rt.HP; got != want {
			t.Fatalf("dist %d: damage = %d, want %d", dist, got, want)
		}
	}
}

func TestPlayerOutOfRangeDoesNotAttack(t *testing.T) {
	f := newFixture(t, 16, 16)
	p := f.player(5, 5)
	c := f.creature(f.template(nil), 8, 5)
	prof, _ := f.world.Combat.Get(p)
	prof.Target = c
	f.combat(dice(0.99)).Update(0)
	rt, _ := f.world.Creatures.Get(c)
	if rt.HP != rt.MaxHP || prof.AttackCooldown != 0 {
		t.Fatal("attacked from out of range")
	}
}

func TestCreatureKillsPlayerWhoRespawnsAtFullHealth(t *testing.T) {
	f := newFixture(t, 16, 16)
	p := f.player(5, 5)
	c := f.creature(f.template(func(tpl *data.CreatureTemplate) {
		tpl.AttackMin, tpl.AttackMax = 500, 500
	}), 6, 5)
	ai, _ := f.world.AI.Get(c)
	ai.State = component.AIAttack
	ai.Target = p

	var deaths []event.PlayerDied
	event.Subscribe(f.world.Bus, func(e event.PlayerDied) { deaths = append(deaths, e) })

	f.combat(dice(0)).Update(0)

	st, _ := f.world.Stats.Get(p)
	if st.HP != st.MaxHP {
		t.Fatalf("player HP = %d, want full %d", st.HP, st.MaxHP)
	}
	if len(deaths) != 1 || deaths[0].Killer != c {
		t.Fatalf("deaths = %+v", deaths)
	}
	pos := f.pos(p)
	if pos.X > 3 || pos.Y > 3 {
		t.Fatalf("player not moved to respawn point: (%d,%d)", pos.X, pos.Y)
	}
	sk, _ := f.world.Skills.Get(p)
	if sk.Skills[component.SkillShielding].Tries != 1 {
		t.Fatal("being hit did not train shielding")
	}
	if ai.AttackCooldown == 0 {
		t.Fatal("creature attack cooldown not set")
	}
}

func TestCreatureOnlyAttacksFromAttackState(t *testing.T) {
	f := newFixture(t, 16, 16)
	p := f.player(5, 5)
	c := f.creature(f.template(nil), 6, 5)
	ai, _ := f.world.AI.Get(c)
	ai.State = component.AIChase
	ai.Target = p
	f.combat(dice(0.5)).Update(0)
	st, _ := f.world.Stats.Get(p)
	if st.HP != st.MaxHP {
		t.Fatal("chasing creature attacked")
	}
}
